package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length of NaCl box keys in bytes.
const KeySize = 32

// Identity is a NaCl crypto_box key pair. The zero value is an empty
// identity: Exists reports false and PublicKey returns nil.
type Identity struct {
	public  [KeySize]byte
	private [KeySize]byte
	present bool
}

// GenerateIdentity creates a new random key pair.
func GenerateIdentity() (*Identity, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return &Identity{
		public:  *publicKey,
		private: *privateKey,
		present: true,
	}, nil
}

// FromSecretKey rebuilds an identity from an existing private key,
// deriving the public half over curve25519.
func FromSecretKey(secretKey [KeySize]byte) (*Identity, error) {
	if isZeroKey(secretKey) {
		return nil, errors.New("invalid secret key: all zeros")
	}

	publicKey, err := curve25519.X25519(secretKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	id := &Identity{private: secretKey, present: true}
	copy(id.public[:], publicKey)
	return id, nil
}

// Exists reports whether key material is present.
func (id *Identity) Exists() bool {
	return id != nil && id.present
}

// PublicKey returns a copy of the public key, or nil for an empty
// identity.
func (id *Identity) PublicKey() []byte {
	if !id.Exists() {
		return nil
	}
	out := make([]byte, KeySize)
	copy(out, id.public[:])
	return out
}

// SecretKey returns a copy of the private key, or nil for an empty
// identity.
func (id *Identity) SecretKey() []byte {
	if !id.Exists() {
		return nil
	}
	out := make([]byte, KeySize)
	copy(out, id.private[:])
	return out
}

func isZeroKey(key [KeySize]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
