package config

import (
	"testing"
	"time"
)

func TestIntFallbacks(t *testing.T) {
	t.Setenv("CFG_INT", "12")
	if got := Int("CFG_INT", 3); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	t.Setenv("CFG_INT", "-4")
	if got := Int("CFG_INT", 3); got != 3 {
		t.Fatalf("expected fallback for negative, got %d", got)
	}
	t.Setenv("CFG_INT", "abc")
	if got := Int("CFG_INT", 3); got != 3 {
		t.Fatalf("expected fallback for malformed, got %d", got)
	}
}

func TestBoolAndDuration(t *testing.T) {
	t.Setenv("CFG_BOOL", "off")
	if Bool("CFG_BOOL", true) {
		t.Fatal("expected off to parse as false")
	}
	t.Setenv("CFG_BOOL", "maybe")
	if !Bool("CFG_BOOL", true) {
		t.Fatal("expected fallback for unknown value")
	}

	t.Setenv("CFG_DUR", "90s")
	if got := Duration("CFG_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	t.Setenv("CFG_DUR", "0s")
	if got := Duration("CFG_DUR", time.Second); got != time.Second {
		t.Fatalf("expected fallback for zero duration, got %s", got)
	}
}

func TestList(t *testing.T) {
	t.Setenv("CFG_LIST", " a, ,b ,c")
	got := List("CFG_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list: %v", got)
	}
}

func TestPort(t *testing.T) {
	t.Setenv("CFG_PORT", "70000")
	if _, err := Port("CFG_PORT", "8080"); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("CFG_REQ", "")
	if _, err := RequiredString("CFG_REQ"); err == nil {
		t.Fatal("expected an error for a missing value")
	}
	t.Setenv("CFG_REQ", "postgres://db")
	if got, err := RequiredString("CFG_REQ"); err != nil || got != "postgres://db" {
		t.Fatalf("got %q, %v", got, err)
	}
}
