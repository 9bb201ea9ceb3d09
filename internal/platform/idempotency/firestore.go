package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/vendormart/api/internal/platform/firestore"
)

const (
	recordsCollection = "idempotencyKeys"
	sweepLimit        = 100
	reserveAttempts   = 5
)

// FirestoreStore keeps one document per scoped key, named by its hash.
// Reserve and SaveResponse run inside transactions so concurrent retries of
// the same key observe a single owner.
type FirestoreStore struct {
	provider *pfirestore.Provider
	records  *pfirestore.Collection[Record]
	attempts int
}

func NewFirestoreStore(provider *pfirestore.Provider) *FirestoreStore {
	return &FirestoreStore{
		provider: provider,
		records:  pfirestore.NewCollection[Record](provider, recordsCollection),
		attempts: reserveAttempts,
	}
}

func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	var out Reservation
	err := s.update(ctx, "reserve", key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, existing *Record) error {
		if existing != nil && !existing.expired(now) {
			if existing.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			out = existing.reservation()
			return nil
		}
		fresh := pendingRecord(key, fingerprint, now, normalizeTTL(ttl))
		out = Reservation{State: ReservationStateNew, Record: fresh}
		return tx.Set(ref, fresh)
	})
	if err != nil {
		return Reservation{}, err
	}
	return out, nil
}

func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	return s.update(ctx, "save", key, func(tx *firestore.Transaction, ref *firestore.DocumentRef, existing *Record) error {
		base := Record{Key: key, Fingerprint: fingerprint}
		if existing != nil {
			if existing.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			base = *existing
		}
		return tx.Set(ref, completeRecord(base, resp, now.UTC(), normalizeTTL(ttl)))
	})
}

// Release forgets the key so the client can retry after a failed attempt.
func (s *FirestoreStore) Release(ctx context.Context, key, _ string) error {
	ref, err := s.records.Ref(ctx, documentID(key))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && !pfirestore.IsNotFound(err) {
		return pfirestore.WrapError("idempotency.release", err)
	}
	return nil
}

// CleanupExpired deletes at most limit records past their expiry and reports
// how many were removed.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = sweepLimit
	}
	expired, err := s.records.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("expiresAt", "<=", now.UTC()).Limit(limit)
	})
	if err != nil || len(expired) == 0 {
		return 0, err
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	bw := client.BulkWriter(ctx)
	defer bw.End()
	for _, doc := range expired {
		ref, err := s.records.Ref(ctx, doc.ID)
		if err != nil {
			return 0, err
		}
		if _, err := bw.Delete(ref); err != nil {
			return 0, pfirestore.WrapError("idempotency.cleanup", err)
		}
	}
	return len(expired), nil
}

type recordUpdate func(tx *firestore.Transaction, ref *firestore.DocumentRef, existing *Record) error

// update runs fn in a transaction with the current record, nil when absent.
func (s *FirestoreStore) update(ctx context.Context, op, key string, fn recordUpdate) error {
	ref, err := s.records.Ref(ctx, documentID(key))
	if err != nil {
		return err
	}
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if pfirestore.IsNotFound(err) {
			return fn(tx, ref, nil)
		}
		if err != nil {
			return err
		}
		doc, err := s.records.Decode(snap)
		if err != nil {
			return err
		}
		return fn(tx, ref, &doc.Data)
	}, pfirestore.WithTxAttempts(s.attempts))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrFingerprintMismatch):
		return ErrFingerprintMismatch
	}
	return pfirestore.WrapError("idempotency."+op, err)
}
