package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/internal/metrics"
	"github.com/layer-3/tapnotify/ports"
)

// TokenService issues signed challenges and verifies signatures presented
// by clients. It keeps no state between calls: any signature over any
// message verifies, whether or not this service issued that message.
type TokenService struct {
	tokenizer ports.Tokenizer
	metrics   *metrics.Metrics
}

// NewTokenService creates a new token service
func NewTokenService(tokenizer ports.Tokenizer, m *metrics.Metrics) *TokenService {
	if m == nil {
		m = metrics.Nop()
	}
	return &TokenService{
		tokenizer: tokenizer,
		metrics:   m,
	}
}

// IssueChallenge generates a random challenge and signs it
func (s *TokenService) IssueChallenge() (core.SecureToken, error) {
	message := make([]byte, core.ChallengeSize)
	if _, err := rand.Read(message); err != nil {
		return core.SecureToken{}, fmt.Errorf("failed to generate challenge: %w", err)
	}

	sig, err := s.tokenizer.Sign(message)
	if err != nil {
		return core.SecureToken{}, fmt.Errorf("failed to sign challenge: %w", err)
	}

	s.metrics.Challenges.Inc()
	return core.SecureToken{
		Message:   base64.StdEncoding.EncodeToString(message),
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Verify checks a base64 signature over message. Malformed input and a
// mismatching signature both yield core.ErrVerificationFailed.
func (s *TokenService) Verify(message []byte, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		s.metrics.Verifications.WithLabelValues("malformed").Inc()
		return fmt.Errorf("%w: decode signature: %w", core.ErrVerificationFailed, err)
	}

	if err := s.tokenizer.Verify(message, sig); err != nil {
		s.metrics.Verifications.WithLabelValues("failed").Inc()
		if errors.Is(err, core.ErrVerificationFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", core.ErrVerificationFailed, err)
	}

	s.metrics.Verifications.WithLabelValues("ok").Inc()
	return nil
}

// VerifySignature reports whether signatureB64 is a valid signature over message
func (s *TokenService) VerifySignature(message []byte, signatureB64 string) bool {
	return s.Verify(message, signatureB64) == nil
}

// VerifyToken decodes the base64 message of token and verifies its signature
func (s *TokenService) VerifyToken(token core.SecureToken) error {
	message, err := base64.StdEncoding.DecodeString(token.Message)
	if err != nil {
		s.metrics.Verifications.WithLabelValues("malformed").Inc()
		return fmt.Errorf("%w: decode message: %w", core.ErrVerificationFailed, err)
	}
	return s.Verify(message, token.Signature)
}
