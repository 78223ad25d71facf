package fault

import (
	"errors"
	"strings"
	"testing"
)

func TestRequire(t *testing.T) {
	if err := Require(true, "ok"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	err := Require(false, "slot lookup")
	f, ok := As(err)
	if !ok {
		t.Fatalf("expected *Fault, got %T", err)
	}
	if f.Op != "slot lookup" {
		t.Errorf("expected op 'slot lookup', got %q", f.Op)
	}
	if f.File != "fault_test.go" {
		t.Errorf("expected caller file fault_test.go, got %s", f.File)
	}
	if f.Line == 0 {
		t.Error("expected a line number")
	}
	if !errors.Is(err, ErrRequire) {
		t.Error("expected errors.Is(err, ErrRequire)")
	}
}

func TestWrapKeepsFirstLocation(t *testing.T) {
	if Wrap(nil, "noop") != nil {
		t.Fatal("expected nil for nil error")
	}

	base := errors.New("bus error")
	inner := Wrap(base, "redirect")
	outer := Wrap(inner, "advance")

	f, _ := As(outer)
	if f.Op != "redirect" {
		t.Errorf("expected inner op to survive, got %q", f.Op)
	}
	if !errors.Is(outer, base) {
		t.Error("expected wrapped base error")
	}
	if !strings.Contains(outer.Error(), "fault_test.go") {
		t.Errorf("expected location in message, got %q", outer.Error())
	}
}

func TestLatchRunsOnce(t *testing.T) {
	calls := 0
	l := NewLatch(nil, func(*Fault) { calls++ })

	first, _ := As(Require(false, "first"))
	second, _ := As(Require(false, "second"))
	l.Halt(first)
	l.Halt(second)

	if calls != 1 {
		t.Errorf("expected onHalt once, got %d", calls)
	}
	if l.Fault() != first {
		t.Errorf("expected first fault latched, got %v", l.Fault())
	}
}
