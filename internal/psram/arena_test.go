package psram

import (
	"errors"
	"testing"
)

func TestAllocAlignment(t *testing.T) {
	a := NewArena(DefaultBase, 1024)

	r1, err := a.Alloc("a", 10)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	r2, err := a.Alloc("b", 10)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if r1.Addr() != DefaultBase {
		t.Errorf("expected first region at base, got 0x%08X", r1.Addr())
	}
	if r2.Addr()%Align != 0 {
		t.Errorf("expected aligned address, got 0x%08X", r2.Addr())
	}
	if r2.Addr() != DefaultBase+Align {
		t.Errorf("expected second region at base+%d, got 0x%08X", Align, r2.Addr())
	}
	if r1.Size() != 10 {
		t.Errorf("expected size 10, got %d", r1.Size())
	}
}

func TestRegionsDoNotAlias(t *testing.T) {
	a := NewArena(DefaultBase, 128)
	r1, _ := a.Alloc("a", 32)
	r2, _ := a.Alloc("b", 32)

	r1.Write(func(b []byte) {
		for i := range b {
			b[i] = 0xAA
		}
	})
	r2.Read(func(b []byte) {
		for i, v := range b {
			if v != 0 {
				t.Fatalf("byte %d of second region modified: 0x%02X", i, v)
			}
		}
	})
}

func TestAllocExhausted(t *testing.T) {
	a := NewArena(DefaultBase, 64)
	if _, err := a.Alloc("big", 65); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if _, err := a.Alloc("zero", 0); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted for zero size, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	a := NewArena(DefaultBase, 256)
	r, _ := a.Alloc("slot", 40)
	got, err := a.Lookup(r.Addr())
	if err != nil || got != r {
		t.Fatalf("expected lookup to find region, got %v, %v", got, err)
	}
	if _, err := a.Lookup(r.Addr() + 4); !errors.Is(err, ErrUnmapped) {
		t.Errorf("expected ErrUnmapped, got %v", err)
	}
}

func TestZero(t *testing.T) {
	a := NewArena(DefaultBase, 64)
	r, _ := a.Alloc("z", 16)
	r.Write(func(b []byte) { b[3] = 7 })
	r.Zero()
	r.Read(func(b []byte) {
		if b[3] != 0 {
			t.Errorf("expected zeroed region, got %d", b[3])
		}
	})
}
