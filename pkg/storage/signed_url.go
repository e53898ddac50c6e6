package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid download token")
	ErrTokenExpired = errors.New("download token expired")
)

// SignedFile is the metadata carried by a download token.
type SignedFile struct {
	FileID    string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates HMAC-SHA256 download tokens of the form
// id.expiry.b64path.signature.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token for the stored file.
func (s *SignedURLSigner) Sign(fileID, relPath string) (string, time.Time, error) {
	if fileID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("file id and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	token := strings.Join([]string{fileID, exp, encodedPath, s.signature(fileID, exp, encodedPath)}, ".")
	return token, expiresAt, nil
}

// Verify validates a token. When allowExpired is true the expiry check is skipped.
func (s *SignedURLSigner) Verify(token string, allowExpired bool) (SignedFile, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return SignedFile{}, ErrInvalidToken
	}
	fileID, exp, encodedPath, sig := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.signature(fileID, exp, encodedPath)), []byte(sig)) {
		return SignedFile{}, ErrInvalidToken
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return SignedFile{}, ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return SignedFile{}, ErrInvalidToken
	}

	file := SignedFile{FileID: fileID, Path: string(rawPath), ExpiresAt: time.Unix(expUnix, 0)}
	if !allowExpired && s.now().After(file.ExpiresAt) {
		return file, ErrTokenExpired
	}
	return file, nil
}

func (s *SignedURLSigner) signature(fileID, exp, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(fileID + "|" + exp + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
