package history

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/kiroshi/internal/imagegen"
	"github.com/danmuck/kiroshi/internal/testutil/testlog"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestCreateAndListNewestFirst(t *testing.T) {
	testlog.Start(t)

	s, _ := openStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	def := imagegen.NewDefinition("anime", "a cat")
	def.Seed = math.MaxUint64
	fin := &imagegen.Finished{Faces: []imagegen.Rectangle{{}, {}}, Hands: []imagegen.Rectangle{{}}}
	first := EntryFor("s1", def, fin, 1500*time.Millisecond, nil)
	second := EntryFor("s2", def, nil, time.Second, errors.New("connection reset"))

	ctx := context.Background()
	if err := s.Create(ctx, &first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := s.Create(ctx, &second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%d want 2", len(entries))
	}
	if entries[0].SessionID != "s2" || entries[1].SessionID != "s1" {
		t.Fatalf("order=%s,%s", entries[0].SessionID, entries[1].SessionID)
	}
	got := entries[1]
	if got.Seed != math.MaxUint64 {
		t.Fatalf("seed=%d", got.Seed)
	}
	if got.Faces != 2 || got.Hands != 1 || got.Outcome != OutcomeFinished {
		t.Fatalf("entry=%+v", got)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Fatalf("duration=%s", got.Duration)
	}
	if got.Width != 512 || got.Height != 768 || got.Steps != 30 || got.Sampler != def.Sampler.String() {
		t.Fatalf("definition fields=%+v", got)
	}
	if entries[0].Outcome != OutcomeError || entries[0].Error != "connection reset" {
		t.Fatalf("error entry=%+v", entries[0])
	}

	limited, err := s.List(ctx, 1)
	if err != nil {
		t.Fatalf("list limit: %v", err)
	}
	if len(limited) != 1 || limited[0].SessionID != "s2" {
		t.Fatalf("limited=%+v", limited)
	}
}

func TestReopenKeepsRowsAndSchema(t *testing.T) {
	testlog.Start(t)

	s, path := openStore(t)
	e := Entry{SessionID: "s1", Model: "m", Outcome: OutcomeFinished}
	if err := s.Create(context.Background(), &e); err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("create did not fill id/created_at: %+v", e)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	again, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()

	var version int
	if err := again.db.QueryRow(getCurrentMigration).Scan(&version); err != nil {
		t.Fatalf("user_version: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("user_version=%d want %d", version, len(migrations))
	}
	entries, err := again.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != e.ID {
		t.Fatalf("entries=%+v", entries)
	}
}
