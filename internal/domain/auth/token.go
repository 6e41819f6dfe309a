package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
)

const tokenBytes = 32

// newToken returns a random URL-safe session token.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Signer binds session tokens to the server secret so that a cookie value
// cannot be forged without it. The cookie carries "<token>.<hex hmac>".
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer keyed by secret.
func NewSigner(secret []byte) Signer {
	return Signer{secret: secret}
}

func (s Signer) mac(token string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

// Sign returns the cookie value for token.
func (s Signer) Sign(token string) string {
	return token + "." + hex.EncodeToString(s.mac(token))
}

// Verify extracts the token from a signed cookie value. The signature is
// checked in constant time.
func (s Signer) Verify(value string) (string, bool) {
	token, sig, ok := strings.Cut(value, ".")
	if !ok || token == "" {
		return "", false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if subtle.ConstantTimeCompare(got, s.mac(token)) != 1 {
		return "", false
	}
	return token, true
}
