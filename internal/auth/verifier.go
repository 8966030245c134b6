package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks the opaque bearer credential presented at
// transport-open time and extracts the participant it was issued to.
// Issuing credentials is an external collaborator's job; Issue exists
// for tools and tests.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// ParticipantID validates the token and returns the participant id it
// carries.
func (v *Verifier) ParticipantID(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	participantID, ok := (*claims)["user_id"].(string)
	if !ok || participantID == "" {
		return "", fmt.Errorf("invalid participant ID in token")
	}
	return participantID, nil
}

// Issue signs a token for participantID, valid for ttl.
func (v *Verifier) Issue(participantID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": participantID,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
