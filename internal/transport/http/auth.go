package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Identity is the caller behind a request. An empty LearnerID is a guest.
type Identity struct {
	LearnerID string
	Role      string
}

// CanAuthor reports whether the identity may publish quizzes and read quiz statistics.
func (i Identity) CanAuthor() bool {
	return i.Role == RoleTeacher || i.Role == RoleAdmin
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// IssueToken signs a token for sub. Used by tooling and tests; the service
// itself only verifies.
func (a *Authenticator) IssueToken(sub, role string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "studyquiz",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies tokenStr and returns the identity it carries.
func (a *Authenticator) Parse(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return Identity{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Identity{}, errors.New("invalid token claims")
	}
	role := claims.Role
	if role == "" {
		role = RoleStudent
	}
	return Identity{LearnerID: claims.Subject, Role: role}, nil
}

type identityKey struct{}

// Middleware attaches the caller's identity. Requests without a bearer token
// continue as guests; a token that fails verification is rejected.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer")
			return
		}
		identity, err := a.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", "bad token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the guest identity when none is attached.
func IdentityFromContext(ctx context.Context) Identity {
	identity, _ := ctx.Value(identityKey{}).(Identity)
	return identity
}

// LearnerFromContext returns the learner id, empty for guests.
func LearnerFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).LearnerID
}
