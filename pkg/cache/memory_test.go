package cache

import (
	"testing"
	"time"
)

func TestMemorySetGet(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	m.Set("a", 1, 0)
	v, ok := m.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatalf("expected 1, got %v (%v)", v, ok)
	}

	if _, ok := m.Get("missing"); ok {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	m.Set("a", 1, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if _, ok := m.Get("a"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestMemoryEviction(t *testing.T) {
	m := NewMemory(WithMaxSize(2))
	defer m.Close()

	m.Set("a", 1, 0)
	m.Set("b", 2, 0)
	m.Set("c", 3, 0)
	if m.Len() > 2 {
		t.Fatalf("expected bounded size, got %d", m.Len())
	}
}

func TestMemoryRange(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	m.Set("a", 1, 0)
	m.Set("b", 2, 0)
	sum := 0
	m.Range(func(_ string, v interface{}) {
		sum += v.(int)
	})
	if sum != 3 {
		t.Fatalf("expected range over both entries, got sum %d", sum)
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	m.Set("a", 1, 0)
	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Fatalf("expected deleted key to miss")
	}
}
