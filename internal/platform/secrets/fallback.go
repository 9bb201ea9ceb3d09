package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// readFallbackFile loads REFERENCE=VALUE lines for local development, keyed by
// cacheKey. Lines for the latest version also answer under the bare canonical
// name. A missing file is not an error.
func readFallbackFile(path string) (map[string]string, error) {
	values := map[string]string{}
	if path == "" {
		return values, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secrets: read fallback file %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rawRef, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ref, err := parseReference(rawRef)
		if err != nil {
			continue
		}
		value = strings.TrimSpace(value)
		values[ref.cacheKey()] = value
		if ref.version == latestVersion {
			values[ref.canonical()] = value
		}
	}
	return values, nil
}
