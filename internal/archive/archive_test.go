package archive

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/kapu/chessmeet/internal/session"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	store, err := NewRedisStore(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord(id string, endedAt time.Time) session.Record {
	return session.Record{
		ID:        id,
		White:     "alice",
		Black:     "bob",
		Variant:   "standard",
		Winner:    "alice",
		Reason:    "checkmate",
		MovesSAN:  []string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6", "Qxf7#"},
		CreatedAt: endedAt.Add(-10 * time.Minute),
		EndedAt:   endedAt,
	}
}

func TestSaveAndRecall(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := sampleRecord("s1", time.Now().Add(-time.Hour))
	recent := sampleRecord("s2", time.Now())
	if err := store.SaveFinal(ctx, old); err != nil {
		t.Fatalf("SaveFinal: %v", err)
	}
	if err := store.SaveFinal(ctx, recent); err != nil {
		t.Fatalf("SaveFinal: %v", err)
	}

	got, err := store.RecentFor(ctx, "alice")
	if err != nil {
		t.Fatalf("RecentFor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "s2" || got[1].ID != "s1" {
		t.Fatalf("records must come newest first: %s, %s", got[0].ID, got[1].ID)
	}

	// both participants are indexed
	forBob, err := store.RecentFor(ctx, "bob")
	if err != nil || len(forBob) != 2 {
		t.Fatalf("RecentFor(bob): %v, %d records", err, len(forBob))
	}
	if none, err := store.RecentFor(ctx, "carol"); err != nil || len(none) != 0 {
		t.Fatalf("RecentFor(carol): %v, %d records", err, len(none))
	}
}

func TestBuildPGN(t *testing.T) {
	rec := sampleRecord("s1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pgn := BuildPGN(rec)

	for _, want := range []string{
		`[White "alice"]`,
		`[Black "bob"]`,
		`[Termination "checkmate"]`,
		`[Result "1-0"]`,
		"1. e4 e5",
		"4. Qxf7#",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("PGN missing %q:\n%s", want, pgn)
		}
	}
	if !strings.HasSuffix(pgn, "1-0") {
		t.Fatalf("PGN must end with the result token:\n%s", pgn)
	}
}

func TestBuildPGNResults(t *testing.T) {
	base := sampleRecord("s1", time.Now())

	black := base
	black.Winner = "bob"
	if pgn := BuildPGN(black); !strings.Contains(pgn, `[Result "0-1"]`) {
		t.Fatalf("black win not encoded:\n%s", pgn)
	}

	draw := base
	draw.Winner = ""
	draw.Reason = "stalemate"
	if pgn := BuildPGN(draw); !strings.Contains(pgn, `[Result "1/2-1/2"]`) {
		t.Fatalf("draw not encoded:\n%s", pgn)
	}

	abandoned := base
	abandoned.Winner = ""
	abandoned.Reason = string(session.ReasonAbandoned)
	if pgn := BuildPGN(abandoned); !strings.Contains(pgn, `[Result "*"]`) {
		t.Fatalf("abandoned game must stay unresolved:\n%s", pgn)
	}
}

func TestMultiFansOut(t *testing.T) {
	store := newTestStore(t)
	multi := NewMulti(store, nil)
	if multi.Empty() {
		t.Fatalf("multi with a sink must not be empty")
	}
	if err := multi.SaveFinal(context.Background(), sampleRecord("s9", time.Now())); err != nil {
		t.Fatalf("SaveFinal: %v", err)
	}
	got, err := store.RecentFor(context.Background(), "alice")
	if err != nil || len(got) != 1 {
		t.Fatalf("record not fanned out: %v, %d", err, len(got))
	}
	if !NewMulti().Empty() {
		t.Fatalf("empty multi must report Empty")
	}
}
