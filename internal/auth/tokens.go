package auth

import (
	"context"
	"fmt"
	"time"

	"flchat/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "flchat"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

var errBadToken = apperr.Authentication("invalid or expired token")

// Identity is who a token was issued to.
type Identity struct {
	UserID int
	Email  string
}

type Claims struct {
	UserID int    `json:"uid"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Revocations remembers refresh token ids that must no longer be accepted.
type Revocations interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Tokens struct {
	cfg     TokenConfig
	revoked Revocations
}

func NewTokens(cfg TokenConfig, revoked Revocations) *Tokens {
	return &Tokens{cfg: cfg, revoked: revoked}
}

func (t *Tokens) IssuePair(id Identity) (*TokenPair, error) {
	access, err := t.IssueAccess(id)
	if err != nil {
		return nil, err
	}
	refresh, err := t.sign(id, typeRefresh, t.cfg.RefreshTTL, t.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (t *Tokens) IssueAccess(id Identity) (string, error) {
	return t.sign(id, typeAccess, t.cfg.AccessTTL, t.cfg.AccessSecret)
}

func (t *Tokens) sign(id Identity, typ string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: id.UserID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   id.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	ss, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return ss, nil
}

func (t *Tokens) parse(tokenString, typ string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil || !token.Valid || claims.Type != typ {
		return nil, errBadToken
	}
	return claims, nil
}

// ValidateToken checks an access token and returns its identity.
func (t *Tokens) ValidateToken(tokenString string) (Identity, error) {
	claims, err := t.parse(tokenString, typeAccess, t.cfg.AccessSecret)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, Email: claims.Subject}, nil
}

// ParseRefresh checks a refresh token, including revocation.
func (t *Tokens) ParseRefresh(ctx context.Context, tokenString string) (Identity, error) {
	claims, err := t.parse(tokenString, typeRefresh, t.cfg.RefreshSecret)
	if err != nil {
		return Identity{}, err
	}
	revoked, err := t.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Identity{}, apperr.Internal(fmt.Errorf("check revocation: %w", err))
	}
	if revoked {
		return Identity{}, apperr.Authentication("token has been revoked")
	}
	return Identity{UserID: claims.UserID, Email: claims.Subject}, nil
}

// Revoke invalidates a refresh token until it would have expired anyway.
func (t *Tokens) Revoke(ctx context.Context, tokenString string) error {
	claims, err := t.parse(tokenString, typeRefresh, t.cfg.RefreshSecret)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return errBadToken
	}
	if err := t.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperr.Internal(fmt.Errorf("revoke token: %w", err))
	}
	return nil
}
