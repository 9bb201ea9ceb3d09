package auth

import (
	"context"
	"strings"

	"github.com/samber/lo"
)

// Roles carried in the "role" custom claim. Staff and admin are operators: they
// may read and change orders they do not own and adjust stock.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Identity is the caller established from a verified Firebase ID token.
type Identity struct {
	UID    string
	Email  string
	Roles  []string
	Locale string
}

// HasRole matches role case-insensitively.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	return role != "" && lo.ContainsBy(i.Roles, func(r string) bool { return normaliseRole(r) == role })
}

type identityKey struct{}

// WithIdentity attaches identity to ctx. Tests use it to bypass token verification.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	return identity, identity != nil
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
