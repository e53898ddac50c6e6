package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignAndVerify(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("file-1", "slips/import.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	file, err := signer.Verify(token, false)
	require.NoError(t, err)
	require.Equal(t, "file-1", file.FileID)
	require.Equal(t, "slips/import.pdf", file.Path)
	require.WithinDuration(t, expiresAt, file.ExpiresAt, time.Second)
}

func TestSignedURLExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	token, _, err := signer.Sign("file-1", "reports/summary.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = signer.Verify(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	file, err := signer.Verify(token, true)
	require.NoError(t, err)
	require.Equal(t, "reports/summary.csv", file.Path)
}

func TestSignedURLTampered(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Sign("file-1", "reports/a.csv")
	require.NoError(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Verify(token, false)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("a.b.c", false)
	require.ErrorIs(t, err, ErrInvalidToken)
}
