package services

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	orderNumberPrefix   = "ORD"
	orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	orderNumberSuffix   = 6
	// 7*36; bytes at or above this are discarded
	orderNumberByteCeil = 252
)

// OrderNumberGenerator issues ORD-<unix millis>-<6 base36 chars> numbers.
// Numbers are unique within the process; cross-instance uniqueness is enforced by the repository.
type OrderNumberGenerator struct {
	mu     sync.Mutex
	clock  func() time.Time
	random io.Reader
	millis int64
	issued map[string]struct{}
}

// NewOrderNumberGenerator returns a generator reading time from clock and entropy from crypto/rand.
func NewOrderNumberGenerator(clock func() time.Time) *OrderNumberGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &OrderNumberGenerator{clock: clock, random: rand.Reader, issued: make(map[string]struct{})}
}

// Next returns a fresh order number.
func (g *OrderNumberGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.clock().UnixMilli()
	if millis != g.millis {
		g.millis = millis
		clear(g.issued)
	}
	for {
		suffix, err := g.suffix()
		if err != nil {
			return "", fmt.Errorf("order number: %w", err)
		}
		if _, dup := g.issued[suffix]; dup {
			continue
		}
		g.issued[suffix] = struct{}{}
		return fmt.Sprintf("%s-%d-%s", orderNumberPrefix, millis, suffix), nil
	}
}

func (g *OrderNumberGenerator) suffix() (string, error) {
	out := make([]byte, 0, orderNumberSuffix)
	buf := make([]byte, orderNumberSuffix*2)
	for len(out) < orderNumberSuffix {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= orderNumberByteCeil {
				continue
			}
			out = append(out, orderNumberAlphabet[int(b)%len(orderNumberAlphabet)])
			if len(out) == orderNumberSuffix {
				break
			}
		}
	}
	return string(out), nil
}
