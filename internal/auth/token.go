package auth

import (
	"sync"
	"time"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 24 * time.Hour

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> token expiry
}

func NewTokenManager(secretKey string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		revoked:   map[string]time.Time{},
	}
}

func (tm *TokenManager) GenerateToken(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)

	claims := jwt.MapClaims{
		"user_id": userID,
		"jti":     uuid.NewString(),
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (tm *TokenManager) parse(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errs.ErrInvalidToken
		}
		return tm.secretKey, nil
	})

	if err != nil || !token.Valid {
		return nil, errs.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errs.ErrInvalidToken
	}
	return claims, nil
}

func (tm *TokenManager) ParseToken(tokenStr string) (string, error) {
	claims, err := tm.parse(tokenStr)
	if err != nil {
		return "", err
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errs.ErrInvalidToken
	}

	if jti, _ := claims["jti"].(string); jti != "" && tm.isRevoked(jti) {
		return "", errs.ErrInvalidToken
	}

	return userID, nil
}

// Revoke makes a token unusable until it would have expired anyway.
func (tm *TokenManager) Revoke(tokenStr string) (string, error) {
	claims, err := tm.parse(tokenStr)
	if err != nil {
		return "", err
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return "", errs.ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", errs.ErrInvalidToken
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := time.Now()
	for id, until := range tm.revoked {
		if until.Before(now) {
			delete(tm.revoked, id)
		}
	}
	tm.revoked[jti] = exp.Time

	return userID, nil
}

func (tm *TokenManager) isRevoked(jti string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	_, ok := tm.revoked[jti]
	return ok
}
