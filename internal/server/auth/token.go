package auth

import "github.com/dmitrijs2005/reembolsai/internal/common"

// VerificationTokenBytes is the entropy of an e-mail verification token.
const VerificationTokenBytes = 32

// NewVerificationToken returns 256 random bits, hex encoded.
func NewVerificationToken() (string, error) {
	return common.MakeRandHexString(VerificationTokenBytes)
}
