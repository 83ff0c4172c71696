// Package nonce issues and verifies the request-forgery tokens guarding
// state-changing form submissions, most notably the payout settings save.
package nonce

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidNonce signals a missing, expired, or mismatched form nonce.
var ErrInvalidNonce = errors.New("nonce: invalid request token")

// Service signs short-lived HMAC tokens bound to a user and an action.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret string) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue creates a nonce for the given user and action.
func (s *Service) Issue(userID, action string) (string, error) {
	issued := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"action":  action,
		"iat":     issued.Unix(),
		"exp":     issued.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("nonce: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the nonce was issued for this user and action and has not
// expired.
func (s *Service) Verify(tokenString, userID, action string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return ErrInvalidNonce
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidNonce
	}
	if claims["user_id"] != userID || claims["action"] != action {
		return ErrInvalidNonce
	}
	return nil
}
