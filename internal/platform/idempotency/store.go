// Package idempotency replays stored responses for retried mutating requests.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DefaultTTL is how long a key and its stored response are retained.
const DefaultTTL = 24 * time.Hour

// Status is the lifecycle state of a stored key.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ReservationState describes what Reserve found for a key.
type ReservationState int

const (
	// ReservationStateNew means the caller owns the key and should run the request.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a stored response should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another request holds the key.
	ReservationStatePending
)

// Reservation is the result of Reserve.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is a stored key with its response, once one has been captured.
type Record struct {
	Key             string              `json:"key" firestore:"key"`
	Fingerprint     string              `json:"fingerprint" firestore:"fingerprint"`
	Status          Status              `json:"status" firestore:"status"`
	ResponseStatus  int                 `json:"responseStatus,omitempty" firestore:"responseStatus"`
	ResponseHeaders map[string][]string `json:"responseHeaders,omitempty" firestore:"responseHeaders,omitempty"`
	ResponseBody    []byte              `json:"responseBody,omitempty" firestore:"responseBody,omitempty"`
	CreatedAt       time.Time           `json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt" firestore:"updatedAt"`
	ExpiresAt       time.Time           `json:"expiresAt" firestore:"expiresAt"`
}

func (r Record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

func (r Record) reservation() Reservation {
	if r.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: r}
	}
	return Reservation{State: ReservationStatePending, Record: r}
}

// Response is the captured HTTP response stored for replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations and responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch is returned when a key is reused for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

func pendingRecord(key, fingerprint string, now time.Time, ttl time.Duration) Record {
	return Record{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func completeRecord(record Record, resp Response, now time.Time, ttl time.Duration) Record {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.Status = StatusCompleted
	record.ResponseStatus = resp.Status
	record.ResponseHeaders = storableHeaders(resp.Headers)
	record.ResponseBody = nil
	if len(resp.Body) > 0 {
		record.ResponseBody = append([]byte(nil), resp.Body...)
	}
	record.UpdatedAt = now
	record.ExpiresAt = now.Add(ttl)
	return record
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// documentID hashes the scoped key so arbitrary client input is safe as a document or redis key.
func documentID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hop-by-hop and transport headers are never replayed.
var omittedHeaders = []string{
	"Connection", "Content-Length", "Date", "Keep-Alive", "Proxy-Authenticate",
	"Proxy-Authorization", "Te", "Trailers", "Transfer-Encoding", "Upgrade",
}

func storableHeaders(header http.Header) map[string][]string {
	out := lo.MapEntries(header, func(name string, values []string) (string, []string) {
		return http.CanonicalHeaderKey(name), slices.Clone(values)
	})
	out = lo.OmitByKeys(out, omittedHeaders)
	if len(out) == 0 {
		return nil
	}
	return out
}
