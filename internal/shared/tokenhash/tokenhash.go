package tokenhash

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// TokenBytes is the amount of randomness in a login token (256 bits).
const TokenBytes = 32

// Generate returns a new url-safe login token.
func Generate() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hasher derives lookup digests for login tokens so stores never hold a
// redeemable token.
type Hasher struct {
	key []byte
}

// New builds a Hasher keyed by secret. Secrets longer than a BLAKE2b key are
// compressed first.
func New(secret []byte) (*Hasher, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty token hash key")
	}
	key := secret
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &Hasher{key: append([]byte(nil), key...)}, nil
}

// Digest returns the hex encoded keyed BLAKE2b-256 of token.
func (h *Hasher) Digest(token string) string {
	mac, _ := blake2b.New256(h.key)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
