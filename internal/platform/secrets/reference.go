package secrets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const latestVersion = "latest"

// reference is a parsed secret://NAME[#VERSION][?project=P&version=V].
// sm:// is accepted as an alias of secret://.
type reference struct {
	name    string
	version string
	project string
}

func parseReference(raw string) (reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return reference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", raw, err)
	}
	if u.Scheme != "secret" && u.Scheme != "sm" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	ref := reference{
		name:    strings.Trim(u.Host+u.Path, "/"),
		version: firstSet(u.Fragment, u.Query().Get("version"), latestVersion),
		project: strings.TrimSpace(u.Query().Get("project")),
	}
	if ref.name == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", raw)
	}
	return ref, nil
}

// canonical drops the version and project, e.g. "secret://stripe_webhook".
func (r reference) canonical() string { return "secret://" + r.name }

// cacheKey identifies one version of a secret regardless of how the reference was spelt.
func (r reference) cacheKey() string { return r.canonical() + "#" + r.version }

// resource is the Secret Manager version name for the given project.
func (r reference) resource(project string) string {
	return "projects/" + project + "/secrets/" + r.name + "/versions/" + r.version
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
