package answer

import (
	"fmt"
	"testing"
	"time"
)

func TestResponseCache_HitReturnsStoredAnswer(t *testing.T) {
	c := NewResponseCache(10, time.Hour)
	c.Put("q1", CachedAnswer{Text: "a1", Sources: []string{"s1"}})

	got, ok := c.Get("q1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Text != "a1" || len(got.Sources) != 1 || got.Sources[0] != "s1" {
		t.Errorf("unexpected cached answer: %+v", got)
	}
}

func TestResponseCache_MissForUnknownQuestion(t *testing.T) {
	c := NewResponseCache(10, time.Hour)

	if _, ok := c.Get("never seen"); ok {
		t.Fatal("expected miss")
	}
}

func TestResponseCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewResponseCache(3, time.Hour)
	for i := 1; i <= 3; i++ {
		c.Put(fmt.Sprintf("q%d", i), CachedAnswer{Text: fmt.Sprintf("a%d", i)})
	}

	// Touch q1 so q2 becomes the eviction victim.
	if _, ok := c.Get("q1"); !ok {
		t.Fatal("expected q1 present")
	}
	c.Put("q4", CachedAnswer{Text: "a4"})

	if _, ok := c.Get("q2"); ok {
		t.Error("expected q2 evicted")
	}
	for _, q := range []string{"q1", "q3", "q4"} {
		if _, ok := c.Get(q); !ok {
			t.Errorf("expected %s present", q)
		}
	}
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	c := NewResponseCache(10, time.Hour)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("q1", CachedAnswer{Text: "a1"})

	now = now.Add(59 * time.Minute)
	if _, ok := c.Get("q1"); !ok {
		t.Fatal("expected entry alive before ttl")
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("q1"); ok {
		t.Fatal("expected entry expired at ttl")
	}
}

func TestResponseCache_ExpiryBeatsLRUTouch(t *testing.T) {
	c := NewResponseCache(10, time.Hour)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("q1", CachedAnswer{Text: "a1"})

	// Frequent access must not extend the entry's life.
	for i := 0; i < 5; i++ {
		now = now.Add(10 * time.Minute)
		c.Get("q1")
	}

	now = now.Add(11 * time.Minute)
	if _, ok := c.Get("q1"); ok {
		t.Fatal("expected expiry despite repeated touches")
	}
}

func TestResponseCache_PutRefreshesExistingEntry(t *testing.T) {
	c := NewResponseCache(10, time.Hour)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put("q1", CachedAnswer{Text: "old"})
	now = now.Add(50 * time.Minute)
	c.Put("q1", CachedAnswer{Text: "new"})

	now = now.Add(30 * time.Minute)
	got, ok := c.Get("q1")
	if !ok {
		t.Fatal("expected refreshed entry alive")
	}
	if got.Text != "new" {
		t.Errorf("expected replaced answer, got %q", got.Text)
	}
	if c.Len() != 1 {
		t.Errorf("expected single entry, got %d", c.Len())
	}
}
