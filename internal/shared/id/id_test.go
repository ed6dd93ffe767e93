package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateIsMonotonicWithinMillisecond(t *testing.T) {
	gen := NewGenerator()
	fixed := time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC)
	gen.now = func() time.Time { return fixed }

	prev := gen.Generate()
	for i := 0; i < 1000; i++ {
		next := gen.Generate()
		if next.Compare(prev) <= 0 {
			t.Fatalf("ID %s not greater than %s", next, prev)
		}
		prev = next
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{MessagePrefix, RequestPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", prefix, id)
		}

		parts := strings.Split(id, "_")
		if len(parts) != 2 {
			t.Fatalf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
		}
		if _, err := ulid.Parse(parts[1]); err != nil {
			t.Errorf("ULID part should be valid: %s", parts[1])
		}
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[MessageID]bool, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := NewMessageID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("expected %d unique IDs, got %d", workers*perWorker, len(seen))
	}
}

func TestGenerateUsesClock(t *testing.T) {
	gen := NewGenerator()
	fixed := time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC)
	gen.now = func() time.Time { return fixed }

	parsed, err := ulid.Parse(gen.GenerateString())
	if err != nil {
		t.Fatalf("generated ID does not parse: %v", err)
	}
	if got := ulid.Time(parsed.Time()); !got.Equal(fixed) {
		t.Errorf("timestamp %v, want %v", got, fixed)
	}
}
