package core

// ChallengeSize is the number of random bytes in an issued challenge
const ChallengeSize = 32

// SecureToken is a challenge and its signature as carried over the wire.
// Both fields are standard base64.
type SecureToken struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}
