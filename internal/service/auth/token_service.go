package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Claims are the custom JWT claims carried by a session connection token.
// The registered ID doubles as the dialogue session identifier.
type Claims struct {
	jwt.RegisteredClaims
	Room string `json:"room"`
	Type string `json:"type"` // always "session"
}

// TokenService issues and validates the short-lived tokens voice clients
// and dashboards present when opening a stream.
type TokenService struct {
	secret     string
	defaultTTL time.Duration
	log        *zap.Logger
}

func NewTokenService(secret string, defaultTTL time.Duration, log *zap.Logger) *TokenService {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &TokenService{
		secret:     secret,
		defaultTTL: defaultTTL,
		log:        log,
	}
}

// Issue creates a signed session token. The embedded jti becomes the
// dialogue session ID, so reconnecting with the same token resumes the same
// session.
func (s *TokenService) Issue(identity, room string, ttlSeconds int) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("identity must not be empty")
	}

	ttl := s.defaultTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}

	sessionID := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        sessionID,
		},
		Room: room,
		Type: "session",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.secret))
	if err != nil {
		s.log.Error("failed to sign session token",
			zap.String("identity", identity),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	s.log.Debug("session token issued",
		zap.String("identity", identity),
		zap.String("room", room),
		zap.String("session_id", sessionID),
	)

	return signedToken, nil
}

// Validate parses a session token and returns the identity, room and
// session ID it carries.
func (s *TokenService) Validate(tokenString string) (identity, room, sessionID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return "", "", "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", "", "", fmt.Errorf("invalid token claims")
	}
	if claims.Type != "session" {
		return "", "", "", fmt.Errorf("unexpected token type %q", claims.Type)
	}

	return claims.Subject, claims.Room, claims.ID, nil
}
