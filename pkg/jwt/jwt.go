package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims JWT 페이로드
// damoang.net 형식(mb_id, mb_name, mb_level)과 angple 형식(user_id, nickname, level)을 모두 받는다
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Level    int    `json:"level,omitempty"`

	MbID    string `json:"mb_id,omitempty"`
	MbName  string `json:"mb_name,omitempty"`
	MbLevel int    `json:"mb_level,omitempty"`
}

// normalize damoang.net 필드를 angple 필드로 채운다
func (c *Claims) normalize() {
	if c.UserID == "" {
		c.UserID = c.MbID
	}
	if c.Nickname == "" {
		c.Nickname = c.MbName
	}
	if c.Level == 0 {
		c.Level = c.MbLevel
	}
}

// Manager issues and verifies HMAC signed tokens
type Manager struct {
	secretKey []byte
	expiresIn time.Duration
	refreshIn time.Duration
}

// NewManager creates a Manager; expiresIn/refreshIn are seconds
func NewManager(secret string, expiresIn, refreshIn int) *Manager {
	return &Manager{
		secretKey: []byte(secret),
		expiresIn: time.Duration(expiresIn) * time.Second,
		refreshIn: time.Duration(refreshIn) * time.Second,
	}
}

// GenerateAccessToken issues an access token for the user
func (m *Manager) GenerateAccessToken(userID, nickname string, level int) (string, error) {
	return m.generate(userID, nickname, level, m.expiresIn)
}

// GenerateRefreshToken issues a long lived token
func (m *Manager) GenerateRefreshToken(userID string) (string, error) {
	return m.generate(userID, "", 0, m.refreshIn)
}

func (m *Manager) generate(userID, nickname string, level int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   userID,
		Nickname: nickname,
		Level:    level,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken 토큰 검증
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims.normalize()
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
