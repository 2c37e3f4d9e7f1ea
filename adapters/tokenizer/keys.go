package tokenizer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/tapnotify/core"
)

// DefaultKeyBits is the modulus size used by GenerateKeyPair callers
const DefaultKeyBits = 2048

// KeyPair is the RSA key pair owned by the token service
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// LoadKeyPair reads a PEM private key and a PEM public key from disk.
// Any failure wraps core.ErrKeyMaterialMissing.
func LoadKeyPair(privatePath, publicPath string) (*KeyPair, error) {
	privatePEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read private key: %w", core.ErrKeyMaterialMissing, err)
	}
	publicPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read public key: %w", core.ErrKeyMaterialMissing, err)
	}
	return ParseKeyPair(privatePEM, publicPEM)
}

// ParseKeyPair parses PEM encoded key material
func ParseKeyPair(privatePEM, publicPEM []byte) (*KeyPair, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %w", core.ErrKeyMaterialMissing, err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %w", core.ErrKeyMaterialMissing, err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// GenerateKeyPair creates a fresh RSA key pair
func GenerateKeyPair(bits int) (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// EncodePEM returns the PKCS#8 private key and PKIX public key as PEM
func (k *KeyPair) EncodePEM() (privatePEM, publicPEM []byte, err error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(k.Private)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(k.Public)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}
