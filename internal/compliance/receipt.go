package compliance

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"veil/pkg/domain"
)

// receiptSigner wraps deletion certificates in a signed token so a receipt
// can be verified offline, independent of the engine that issued it.
type receiptSigner struct {
	key []byte
}

func newReceiptSigner(key string) *receiptSigner {
	if key == "" {
		return nil
	}
	return &receiptSigner{key: []byte(key)}
}

func (s *receiptSigner) sign(userID domain.UserID, requestID, certificateHash string, deletionDate time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":  "veil",
		"sub":  userID.String(),
		"jti":  requestID,
		"iat":  deletionDate.Unix(),
		"cert": certificateHash,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign deletion receipt: %w", err)
	}
	return signed, nil
}
