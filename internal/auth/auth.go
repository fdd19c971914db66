// Package auth turns identity-provider tokens into domain actors. Tokens are
// HS256 JWTs carrying the subject as actor id and a role claim.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pastorcare/backend/internal/domain"
)

var (
	ErrTokenMissing = errors.New("missing bearer token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	Role string `json:"role"`
	jwtv5.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue signs a token for actor. Used by the dev token tool and tests.
func (v *Verifier) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	if !actor.Valid() {
		return "", ErrTokenInvalid
	}
	now := v.now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   actor.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

func (v *Verifier) Verify(tokenString string) (domain.Actor, error) {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(v.issuer))
	}

	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return domain.Actor{}, ErrTokenExpired
		}
		return domain.Actor{}, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Actor{}, ErrTokenInvalid
	}
	role, ok := domain.ParseRole(claims.Role)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return domain.Actor{}, ErrTokenInvalid
	}
	return domain.Actor{ID: claims.Subject, Role: role}, nil
}

// FromBearer verifies an "Authorization: Bearer <token>" header value.
func (v *Verifier) FromBearer(header string) (domain.Actor, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return domain.Actor{}, ErrTokenMissing
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return domain.Actor{}, ErrTokenInvalid
	}
	return v.Verify(strings.TrimSpace(token))
}

type actorKey struct{}

func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}
