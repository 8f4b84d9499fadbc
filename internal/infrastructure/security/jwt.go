package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/civitas-platform/identity-service/internal/application/identity"
	"github.com/civitas-platform/identity-service/internal/domain"
)

type JWTSigner struct {
	secret []byte
	issuer string
}

func NewJWTSigner(secret string, issuer string) *JWTSigner {
	return &JWTSigner{
		secret: []byte(secret),
		issuer: issuer,
	}
}

type accessClaims struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	RoleID    int    `json:"roleId"`
	Role      string `json:"role"`
	AvatarRef string `json:"avatarRef,omitempty"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) SignAccessToken(claims identity.TokenClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	ac := accessClaims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		RoleID:    claims.RoleID,
		Role:      claims.Role,
		AvatarRef: claims.AvatarRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, ac)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

// VerifyAccessToken rejects anything expired at verification time, with no
// grace window; an expired token is just an invalid token at this boundary.
func (s *JWTSigner) VerifyAccessToken(token string) (identity.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return identity.TokenClaims{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return identity.TokenClaims{}, domain.ErrTokenInvalid()
	}

	exp := time.Time{}
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	return identity.TokenClaims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		RoleID:    claims.RoleID,
		Role:      claims.Role,
		AvatarRef: claims.AvatarRef,
		Exp:       exp,
	}, nil
}
