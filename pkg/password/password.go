// Package password hashes credentials with PBKDF2-HMAC-SHA256 and recognises
// the legacy plaintext and unsalted SHA-256 encodings still present in older rows.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Prefix     = "PBKDF2"
	Iterations = 100000
	SaltSize   = 32
	KeySize    = 32

	generatedAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789@#$%"
)

var ErrMalformedHash = errors.New("malformed password hash")

// Hash derives a new PBKDF2 encoding: PBKDF2$<iterations>$<b64 salt>$<b64 key>.
func Hash(plain string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(plain), salt, Iterations, KeySize, sha256.New)
	return encode(Iterations, salt, key), nil
}

func encode(iterations int, salt, key []byte) string {
	return strings.Join([]string{
		Prefix,
		strconv.Itoa(iterations),
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	}, "$")
}

// IsPBKDF2 reports whether stored uses the current encoding.
func IsPBKDF2(stored string) bool {
	return strings.HasPrefix(stored, Prefix+"$")
}

// Verify checks plain against a PBKDF2 encoding.
func Verify(plain, stored string) (bool, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 || parts[0] != Prefix {
		return false, ErrMalformedHash
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false, ErrMalformedHash
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, ErrMalformedHash
	}
	expected, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(expected) == 0 {
		return false, ErrMalformedHash
	}

	derived := pbkdf2.Key([]byte(plain), salt, iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(derived, expected) == 1, nil
}

// Check verifies plain against any supported encoding. needsRehash is true when the
// match came from a legacy format and the caller should store a fresh PBKDF2 hash.
func Check(plain, stored string) (ok bool, needsRehash bool) {
	if stored == "" {
		return false, false
	}
	if IsPBKDF2(stored) {
		ok, err := Verify(plain, stored)
		if err != nil {
			return false, false
		}
		return ok, false
	}

	sum := sha256.Sum256([]byte(plain))
	legacyDigest := base64.StdEncoding.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(legacyDigest), []byte(stored)) == 1 {
		return true, true
	}
	if subtle.ConstantTimeCompare([]byte(plain), []byte(stored)) == 1 {
		return true, true
	}
	return false, false
}

// Generate returns a random password of the given length drawn from an unambiguous alphabet.
func Generate(length int) (string, error) {
	if length < 8 {
		length = 8
	}
	max := big.NewInt(int64(len(generatedAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b.WriteByte(generatedAlphabet[n.Int64()])
	}
	return b.String(), nil
}
