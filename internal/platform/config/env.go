package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// envLayers lists value maps from lowest to highest precedence.
type envLayers []map[string]string

func collectLayers(options loaderOptions) (envLayers, error) {
	dotenv, err := readDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	layers := envLayers{dotenv}
	if options.useSystemEnv {
		layers = append(layers, processEnv())
	}
	return append(layers, options.envMap), nil
}

func (l envLayers) lookup(key string) (string, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if value, ok := l[i][key]; ok {
			return value, true
		}
	}
	return "", false
}

func (l envLayers) flatten() map[string]string {
	out := make(map[string]string)
	for _, layer := range l {
		for key, value := range layer {
			out[key] = value
		}
	}
	return out
}

func processEnv() map[string]string {
	out := make(map[string]string)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if key = strings.TrimSpace(key); ok && key != "" {
			out[key] = value
		}
	}
	return out
}

// readDotEnv parses KEY=VALUE lines, tolerating "export" prefixes and quotes.
// A missing file yields no values.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	values := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return values, nil
}

// envSource reads typed values and remembers which fields failed to parse.
type envSource struct {
	layers  envLayers
	invalid []string
}

func (s *envSource) raw(key string) (string, bool) {
	value, ok := s.layers.lookup(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (s *envSource) reject(field string) {
	s.invalid = append(s.invalid, field)
}

func (s *envSource) text(key, fallback string) string {
	if value, ok := s.raw(key); ok {
		return value
	}
	return fallback
}

func (s *envSource) keyword(key, fallback string) string {
	return strings.ToLower(s.text(key, fallback))
}

func (s *envSource) duration(field, key string, fallback time.Duration) time.Duration {
	value, ok := s.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		s.reject(field)
		return fallback
	}
	return d
}

func (s *envSource) count(field, key string, fallback int) int {
	value, ok := s.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		s.reject(field)
		return fallback
	}
	return n
}

func (s *envSource) toggle(field, key string, fallback bool) bool {
	value, ok := s.raw(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	s.reject(field)
	return fallback
}

func (s *envSource) list(key string) []string {
	value, _ := s.raw(key)
	return lo.Compact(lo.Map(strings.Split(value, ","), func(part string, _ int) string {
		return strings.TrimSpace(part)
	}))
}

// amount parses a decimal such as a tax rate or a fee. fallback must be a valid decimal.
func (s *envSource) amount(field, key, fallback string) decimal.Decimal {
	value, err := decimal.NewFromString(s.text(key, fallback))
	if err != nil {
		s.reject(field)
		return decimal.RequireFromString(fallback)
	}
	return value
}
