package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/samber/lo"

	"github.com/vendormart/api/internal/platform/httpx"
)

const (
	roleClaim     = "role"
	localeClaim   = "locale"
	emailClaim    = "email"
	verifyTimeout = 5 * time.Second
)

var (
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens. FirebaseVerifier is the production implementation.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns bearer tokens into an Identity on the request context.
type Authenticator struct {
	verifier TokenVerifier
	timeout  time.Duration
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithVerificationTimeout bounds each token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{verifier: verifier, timeout: verifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth rejects requests without a valid bearer token with 401.
// With roles given, a caller holding none of them gets 403 insufficient_role.
// Tokens without a role claim are treated as RoleUser.
func (a *Authenticator) RequireFirebaseAuth(roles ...string) func(http.Handler) http.Handler {
	required := lo.Compact(lo.Map(roles, func(role string, _ int) string { return normaliseRole(role) }))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized))
				return
			}
			if a == nil || a.verifier == nil {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authorization service unavailable", http.StatusUnauthorized))
				return
			}

			identity, err := a.verify(ctx, raw)
			if err != nil {
				httpx.WriteError(ctx, w, verificationError(err))
				return
			}
			if len(required) > 0 && !lo.SomeBy(required, identity.HasRole) {
				httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func (a *Authenticator) verify(ctx context.Context, raw string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	token, err := a.verifier.VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	roles := claimRoles(token.Claims[roleClaim])
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}
	return &Identity{
		UID:    token.UID,
		Email:  claimString(token.Claims, emailClaim),
		Locale: claimString(token.Claims, localeClaim),
		Roles:  roles,
	}, nil
}

// claimRoles accepts "admin", ["staff","admin"] or {"staff": true}.
func claimRoles(claim any) []string {
	var raw []string
	switch v := claim.(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		raw = lo.FilterMap(v, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok
		})
	case map[string]any:
		raw = lo.Filter(lo.Keys(v), func(role string, _ int) bool {
			enabled, _ := v[role].(bool)
			return enabled
		})
	}
	return lo.Uniq(lo.Compact(lo.Map(raw, func(role string, _ int) string { return normaliseRole(role) })))
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	return token, ok && strings.EqualFold(scheme, "Bearer") && token != ""
}

func verificationError(err error) httpx.Error {
	if errors.Is(err, ErrTokenExpired) || firebaseauth.IsIDTokenExpired(err) {
		return httpx.NewError("token_expired", "firebase id token expired", http.StatusUnauthorized)
	}
	message := "firebase id token verification failed"
	if errors.Is(err, ErrTokenInvalid) || firebaseauth.IsIDTokenInvalid(err) {
		message = "firebase id token invalid"
	}
	return httpx.NewError("invalid_token", message, http.StatusUnauthorized)
}
