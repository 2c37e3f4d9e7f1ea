package ports

// Tokenizer signs and verifies raw messages with the service key pair
type Tokenizer interface {
	// Sign signs message with the private key
	Sign(message []byte) ([]byte, error)

	// Verify checks signature over message against the public key
	Verify(message, signature []byte) error
}
