package blocklist

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/providers"
)

func newTestManager(base, cap time.Duration) (*Manager, *time.Time) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	m := New(base, cap, logger)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestUnknownProviderIsActive(t *testing.T) {
	m, _ := newTestManager(30*time.Minute, 24*time.Hour)
	if !m.IsActive("indexer") {
		t.Error("A provider with no failure history should be active")
	}
}

func TestBackoffDoublesPerFailure(t *testing.T) {
	m, _ := newTestManager(30*time.Minute, 24*time.Hour)

	expected := []time.Duration{
		30 * time.Minute,
		60 * time.Minute,
		120 * time.Minute,
		240 * time.Minute,
	}

	for i, want := range expected {
		got := m.RecordFailure("indexer", providers.ErrTimeout, "timed out")
		if got != want {
			t.Errorf("Failure %d: expected block of %s, got %s", i+1, want, got)
		}
	}
}

func TestBackoffNeverExceedsCap(t *testing.T) {
	m, _ := newTestManager(30*time.Minute, 4*time.Hour)

	var last time.Duration
	for i := 0; i < 40; i++ {
		d := m.RecordFailure("indexer", providers.ErrProtocol, "bad response")
		if d > 4*time.Hour {
			t.Fatalf("Failure %d: block %s exceeds cap", i+1, d)
		}
		if d < last {
			t.Fatalf("Failure %d: block %s shrank from %s", i+1, d, last)
		}
		last = d
	}
	if last != 4*time.Hour {
		t.Errorf("Expected blocks to settle at the cap, got %s", last)
	}
}

func TestAuthFailureJumpsToCap(t *testing.T) {
	m, _ := newTestManager(30*time.Minute, 24*time.Hour)

	d := m.RecordFailure("indexer", providers.ErrAuthFailure, "bad api key")
	if d != 24*time.Hour {
		t.Errorf("Expected auth failure to block for the cap, got %s", d)
	}
	if m.IsActive("indexer") {
		t.Error("Provider should be blocked after an auth failure")
	}
}

func TestBlockExpiresOnItsOwn(t *testing.T) {
	m, now := newTestManager(30*time.Minute, 24*time.Hour)

	m.RecordFailure("indexer", providers.ErrTimeout, "timed out")
	if m.IsActive("indexer") {
		t.Fatal("Provider should be blocked immediately after a failure")
	}

	*now = now.Add(31 * time.Minute)
	if !m.IsActive("indexer") {
		t.Error("Block should have expired")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	m, now := newTestManager(30*time.Minute, 24*time.Hour)

	m.RecordFailure("indexer", providers.ErrTimeout, "timed out")
	m.RecordFailure("indexer", providers.ErrTimeout, "timed out")
	*now = now.Add(2 * time.Hour)

	m.RecordSuccess("indexer")

	// Next failure starts the ladder over
	d := m.RecordFailure("indexer", providers.ErrTimeout, "timed out")
	if d != 30*time.Minute {
		t.Errorf("Expected base block after a success, got %s", d)
	}
}

func TestClearAllReactivatesEverything(t *testing.T) {
	m, _ := newTestManager(30*time.Minute, 24*time.Hour)

	m.RecordFailure("a", providers.ErrTimeout, "timed out")
	m.RecordFailure("b", providers.ErrAuthFailure, "bad key")

	if n := m.ClearAll(); n != 2 {
		t.Errorf("Expected 2 cleared entries, got %d", n)
	}
	if !m.IsActive("a") || !m.IsActive("b") {
		t.Error("All providers should be active after ClearAll")
	}

	// Counts restart from scratch too
	d := m.RecordFailure("a", providers.ErrTimeout, "timed out")
	if d != 30*time.Minute {
		t.Errorf("Expected base block after ClearAll, got %s", d)
	}
}

func TestSnapshotListsOnlyBlocked(t *testing.T) {
	m, now := newTestManager(30*time.Minute, 24*time.Hour)

	m.RecordFailure("expired", providers.ErrTimeout, "timed out")

	// Let the first block lapse, then block a second provider
	*now = now.Add(31 * time.Minute)
	m.RecordFailure("blocked", providers.ErrTimeout, "timed out")

	snapshot := m.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("Expected 1 blocked provider, got %d", len(snapshot))
	}
	if snapshot[0].Name != "blocked" {
		t.Errorf("Unexpected provider in snapshot: %s", snapshot[0].Name)
	}
	if snapshot[0].ResumesIn <= 0 {
		t.Errorf("Expected positive resume window, got %s", snapshot[0].ResumesIn)
	}
}
