package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/wallet-ledger/ledger"
)

// =============================================================================
// BEARER TOKEN AUTH
// =============================================================================

// Auth issues and verifies HS256 bearer tokens whose subject is the user id.
// It is the only place a user id enters the system; handlers read it from
// the request context and pass it to every ledger call.
type Auth struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewAuth(secret, issuer string) *Auth {
	return &Auth{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// IssueToken mints a token for userID valid for ttl.
func (a *Auth) IssueToken(userID ledger.UserID, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   string(userID),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken verifies signature, issuer and expiry and returns the subject.
func (a *Auth) ParseToken(tokenStr string) (ledger.UserID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(t *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject: %w", jwt.ErrTokenInvalidClaims)
	}
	return ledger.UserID(claims.Subject), nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's user id in the request context.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		userID, err := a.ParseToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

type userKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID ledger.UserID) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the authenticated user id, if any.
func UserFrom(ctx context.Context) (ledger.UserID, bool) {
	id, ok := ctx.Value(userKey{}).(ledger.UserID)
	return id, ok && id != ""
}
