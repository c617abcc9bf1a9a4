// Package sig computes and checks the keyed signatures carried by sealed
// records.
package sig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptySecret indicates that a Signer was constructed without a signing
// secret. This is a fatal configuration condition: signing must never fall
// back to an unkeyed hash.
var ErrEmptySecret = errors.New("empty signing secret")

// Signer computes HMAC-SHA256 signatures over message bytes, rendered as
// lowercase hex. Signer is stateless and safe for concurrent use.
type Signer struct {
	secret []byte
}

// New returns a Signer keyed with the provided secret, or ErrEmptySecret if
// the secret is empty.
func New(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: secret}, nil
}

// Sign returns the lowercase hex HMAC-SHA256 of msg.
func (s *Signer) Sign(msg []byte) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write(msg)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether sigHex is the valid signature of msg. The comparison
// is constant-time in the MAC bytes.
func (s *Signer) Verify(msg []byte, sigHex string) bool {
	want, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, s.secret)
	h.Write(msg)
	return hmac.Equal(h.Sum(nil), want)
}
