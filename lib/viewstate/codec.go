// Package viewstate encodes the durable part of a page's UI state into an
// opaque token carried by the client between round trips.
//
// Two modes are supported:
//   - Signed (default): msgpack + base64 + HMAC, visible but tamper-proof
//   - Encrypted: AES-256-GCM, fully opaque
//
// Only durable state belongs here. Transient render-pass state, such as
// observer registrations, is rebuilt on every request and never encoded.
package viewstate

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Errors returned by Decode.
var (
	ErrInvalidFormat    = errors.New("viewstate: invalid format")
	ErrSignatureInvalid = errors.New("viewstate: signature verification failed")
	ErrDecryptFailed    = errors.New("viewstate: decryption failed")
)

// Encodable is implemented by values with durable state.
type Encodable interface {
	HXEncode() map[string]any
}

// Decodable is implemented by values that restore durable state.
type Decodable interface {
	HXDecode(map[string]any) error
}

// Codec signs or encrypts state snapshots.
type Codec struct {
	key []byte
	gcm cipher.AEAD
}

// NewCodec creates a codec. Keys shorter than 32 bytes are stretched
// with SHA-256.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Codec{key: key, gcm: gcm}, nil
}

// Encode serializes a snapshot. If sensitive is true the token is
// encrypted; otherwise it is signed.
func (c *Codec) Encode(snapshot map[string]any, sensitive bool) (string, error) {
	packed, err := msgpack.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("viewstate: marshal: %w", err)
	}

	if sensitive {
		return c.encrypt(packed)
	}
	return c.sign(packed), nil
}

// Decode verifies or decrypts a token and returns the snapshot.
func (c *Codec) Decode(token string, sensitive bool) (map[string]any, error) {
	var packed []byte
	var err error

	if sensitive {
		packed, err = c.decrypt(token)
	} else {
		packed, err = c.verify(token)
	}
	if err != nil {
		return nil, err
	}

	var snapshot map[string]any
	if err := msgpack.Unmarshal(packed, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return snapshot, nil
}

// EncodeValue encodes the durable state of v.
func (c *Codec) EncodeValue(v Encodable, sensitive bool) (string, error) {
	return c.Encode(v.HXEncode(), sensitive)
}

// DecodeValue restores the durable state of v from token.
func (c *Codec) DecodeValue(token string, sensitive bool, v Decodable) error {
	snapshot, err := c.Decode(token, sensitive)
	if err != nil {
		return err
	}
	return v.HXDecode(snapshot)
}

// sign creates a signed (but visible) encoding: base64.signature
func (c *Codec) sign(data []byte) string {
	b64 := base64.RawURLEncoding.EncodeToString(data)
	mac := hmac.New(sha256.New, c.key)
	mac.Write(data)
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:16])
	return b64 + "." + sig
}

func (c *Codec) verify(token string) ([]byte, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidFormat
	}

	data, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidFormat
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, c.key)
	mac.Write(data)
	if !hmac.Equal(sig, mac.Sum(nil)[:16]) {
		return nil, ErrSignatureInvalid
	}

	return data, nil
}

func (c *Codec) encrypt(data []byte) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := c.gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

func (c *Codec) decrypt(token string) ([]byte, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidFormat
	}

	if len(ciphertext) < c.gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}

	nonce := ciphertext[:c.gcm.NonceSize()]
	plain, err := c.gcm.Open(nil, nonce, ciphertext[c.gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
