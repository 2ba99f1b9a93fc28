package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skillgate/go-interview-backend/internal/domain"
)

func TestIdempotency_RoundTrip(t *testing.T) {
	db := newRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "iv-1", "key-1", "cand-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}

	got, err := GetIdempotency(ctx, db, "u1", "iv-1", "key-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.CandidateID != rec.CandidateID || got.Status != 201 {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
}

func TestIdempotency_BlankInterviewID(t *testing.T) {
	db := newRepoDB(t, &domain.Idempotency{})

	if _, err := GetIdempotency(context.Background(), db, "u1", "  ", "key-1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIdempotency_ExpiredRecordInvisible(t *testing.T) {
	db := newRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "iv-1", "key-1", "cand-1", 201, time.Minute); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}

	// Probe from beyond the TTL horizon.
	future := time.Now().UTC().Add(2 * time.Minute)
	if _, err := GetIdempotency(ctx, db, "u1", "iv-1", "key-1", future); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record resolved: err = %v", err)
	}
}

func TestIdempotency_DuplicateTuple(t *testing.T) {
	db := newRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "iv-1", "key-1", "cand-1", 201, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "iv-1", "key-1", "cand-2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	// A different key under the same user and interview is a fresh record.
	if _, err := CreateIdempotency(ctx, db, "u1", "iv-1", "key-2", "cand-2", 201, time.Hour); err != nil {
		t.Fatalf("second key: %v", err)
	}
}
