package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a := Key("https://a/1.html", "u@example.com")
	if len(a) != len("sent_")+32 || a[:5] != "sent_" {
		t.Errorf("Key() = %q", a)
	}
	if a == Key("https://a/2.html", "u@example.com") {
		t.Error("different pages should have different keys")
	}
	if a != Key("https://a/1.html", "u@example.com") {
		t.Error("Key() should be deterministic")
	}
}

func TestLedger_Once(t *testing.T) {
	l := New(NewMemory(), 0)
	calls := 0
	send := func() error { calls++; return nil }

	sent, err := l.Once(t.Context(), "https://a/1.html", "u@example.com", send)
	if err != nil || !sent {
		t.Fatalf("first Once() = %v, %v", sent, err)
	}
	sent, err = l.Once(t.Context(), "https://a/1.html", "u@example.com", send)
	if err != nil || sent {
		t.Errorf("second Once() = %v, %v; want skipped", sent, err)
	}
	if _, err := l.Once(t.Context(), "https://a/1.html", "v@example.com", send); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("send calls = %d, want 2", calls)
	}
}

func TestLedger_OnceReleasesOnFailure(t *testing.T) {
	l := New(NewMemory(), 0)

	sent, err := l.Once(t.Context(), "p", "e", func() error { return errors.New("smtp down") })
	if err == nil || sent {
		t.Fatalf("Once() = %v, %v; want failure", sent, err)
	}

	sent, err = l.Once(t.Context(), "p", "e", func() error { return nil })
	if err != nil || !sent {
		t.Errorf("retry Once() = %v, %v; want sent", sent, err)
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2025, 7, 3, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	if ok, _ := m.SetNX(t.Context(), "k", time.Hour); !ok {
		t.Fatal("first SetNX should store")
	}
	if ok, _ := m.SetNX(t.Context(), "k", time.Hour); ok {
		t.Error("SetNX before expiry should not store")
	}
	now = now.Add(2 * time.Hour)
	if ok, _ := m.SetNX(t.Context(), "k", time.Hour); !ok {
		t.Error("SetNX after expiry should store")
	}
}
