package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

const (
	secretScheme      = "secret://"
	shortSecretScheme = "sm://"
)

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// SecretResolver turns a secret:// reference into its current value.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// SecretError reports a reference that could not be resolved.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError lists required secrets that ended up empty. Error() only
// prints hashed names so logs never reveal which credential is absent.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	redacted := e.RedactedNames()
	if len(redacted) == 0 {
		return "missing required secrets"
	}
	return "missing required secrets [" + strings.Join(redacted, ", ") + "]"
}

// Names returns the config field names of the missing secrets, sorted.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.names) == 0 {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

// RedactedNames returns the hashed form of Names, sorted.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.names) == 0 {
		return nil
	}
	out := lo.Map(e.names, func(name string, _ int) string { return redactSecretName(name) })
	sort.Strings(out)
	return out
}

// secretFields enumerates the config values that may hold secret references.
func secretFields(cfg *Config) map[string]*string {
	return map[string]*string{
		"PSP.StripeWebhookSecret": &cfg.PSP.StripeWebhookSecret,
		"Redis.URL":               &cfg.Redis.URL,
	}
}

// resolveSecrets replaces every secret reference in cfg in place and returns
// the resolved values keyed by field name.
func resolveSecrets(ctx context.Context, cfg *Config, resolver SecretResolver) (map[string]string, error) {
	fields := secretFields(cfg)
	resolved := make(map[string]string, len(fields))
	for _, name := range lo.Keys(fields) {
		field := fields[name]
		value, err := resolveSecret(ctx, *field, resolver)
		if err != nil {
			return nil, err
		}
		*field = value
		resolved[name] = strings.TrimSpace(value)
	}
	return resolved, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	ref, ok := secretReference(value)
	if !ok {
		return value, nil
	}
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

// secretReference normalises sm:// to secret:// and reports whether value is a reference at all.
func secretReference(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, shortSecretScheme); ok {
		return secretScheme + rest, true
	}
	return trimmed, strings.HasPrefix(trimmed, secretScheme)
}

func missingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	names := lo.Uniq(lo.Compact(lo.Map(required, func(name string, _ int) string {
		return strings.TrimSpace(name)
	})))
	missing := lo.Filter(names, func(name string, _ int) bool { return resolved[name] == "" })
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{names: missing}
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}
