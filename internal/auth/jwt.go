package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"semaphore/gradebook/internal/model"
)

type Claims struct {
	AccountID  string     `json:"account_id"`
	Role       model.Role `json:"role"`
	GivenName  string     `json:"given_name"`
	FamilyName string     `json:"family_name"`
	jwt.RegisteredClaims
}

func NewAccessToken(secret, issuer string, ttl time.Duration, identity model.Identity) (string, error) {
	if secret == "" {
		return "", errors.New("missing_jwt_secret")
	}
	now := time.Now().UTC()
	claims := Claims{
		AccountID:  identity.AccountID.String(),
		Role:       identity.Role,
		GivenName:  identity.GivenName,
		FamilyName: identity.FamilyName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.AccountID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, issuer, tokenString string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, options...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (c *Claims) Identity() (model.Identity, error) {
	id, err := uuid.Parse(c.AccountID)
	if err != nil {
		return model.Identity{}, jwt.ErrTokenInvalidClaims
	}
	if !c.Role.Valid() {
		return model.Identity{}, jwt.ErrTokenInvalidClaims
	}
	return model.Identity{
		AccountID:  id,
		Role:       c.Role,
		GivenName:  c.GivenName,
		FamilyName: c.FamilyName,
	}, nil
}
