package tokenizer

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/ports"
)

// RSATokenizer implements the Tokenizer interface with RSA PKCS#1 v1.5
// over SHA-256 (RS256)
type RSATokenizer struct {
	signKey   *rsa.PrivateKey
	verifyKey *rsa.PublicKey
	method    *jwt.SigningMethodRSA
}

// NewRSATokenizer creates a new RSA tokenizer from a loaded key pair
func NewRSATokenizer(keys *KeyPair) (ports.Tokenizer, error) {
	if keys == nil || keys.Private == nil || keys.Public == nil {
		return nil, core.ErrKeyMaterialMissing
	}
	return &RSATokenizer{
		signKey:   keys.Private,
		verifyKey: keys.Public,
		method:    jwt.SigningMethodRS256,
	}, nil
}

// Sign signs message with the private key
func (t *RSATokenizer) Sign(message []byte) ([]byte, error) {
	sig, err := t.method.Sign(string(message), t.signKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

// Verify checks signature over message against the public key
func (t *RSATokenizer) Verify(message, signature []byte) error {
	if len(signature) == 0 {
		return core.ErrVerificationFailed
	}
	if err := t.method.Verify(string(message), signature, t.verifyKey); err != nil {
		return fmt.Errorf("%w: %w", core.ErrVerificationFailed, err)
	}
	return nil
}
