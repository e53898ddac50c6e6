package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/storage"
)

func newFileServiceForTest(t *testing.T, ttl time.Duration) *FileService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", ttl)
	return NewFileService(store, signer, FileServiceConfig{APIPrefix: "/api/v1"}, zap.NewNop())
}

func TestFileServiceStoreAndResolve(t *testing.T) {
	svc := newFileServiceForTest(t, time.Hour)

	stored, err := svc.Store("credentials", "import slips.pdf", []byte("%PDF-1.3 test"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stored.URL, "/api/v1/files/"))
	assert.Equal(t, "import_slips.pdf", stored.Filename)

	token := strings.TrimPrefix(stored.URL, "/api/v1/files/")
	download, err := svc.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "import_slips.pdf", download.Filename)
	assert.Equal(t, "application/pdf", download.ContentType)
	assert.Equal(t, []byte("%PDF-1.3 test"), download.Body)
}

func TestFileServiceRejectsTamperedToken(t *testing.T) {
	svc := newFileServiceForTest(t, time.Hour)

	stored, err := svc.Store("reports", "summary.csv", []byte("a,b\n"))
	require.NoError(t, err)
	token := strings.TrimPrefix(stored.URL, "/api/v1/files/")

	_, err = svc.Resolve(token + "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "file", sanitizeFilename(""))
	assert.Equal(t, "a-b-c.csv", sanitizeFilename("a/b\\c.csv"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 150)), 100)
}
