package vm

import (
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// Float tests
// ---------------------------------------------------------------------------

func TestFloatRoundTrip(t *testing.T) {
	tests := []float64{
		0.0,
		1.0,
		-1.0,
		3.14159265358979,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		-math.MaxFloat64,
		math.Inf(1),
		math.Inf(-1),
	}

	for _, f := range tests {
		v := FromFloat(f)
		if !v.IsFloat() {
			t.Errorf("FromFloat(%v).IsFloat() = false, want true", f)
			continue
		}
		if got := v.Float(); got != f {
			t.Errorf("FromFloat(%v).Float() = %v, want %v", f, got, f)
		}
	}
}

func TestFloatNaN(t *testing.T) {
	v := FromFloat(math.NaN())
	if !v.IsFloat() {
		t.Error("NaN should be treated as float")
	}
	if !math.IsNaN(v.Float()) {
		t.Error("NaN roundtrip failed")
	}
}

// ---------------------------------------------------------------------------
// Fixnum tests
// ---------------------------------------------------------------------------

func TestFixnumRoundTrip(t *testing.T) {
	tests := []int64{0, 1, -1, 42, -42, 1 << 40, -(1 << 40), MaxFixnum, MinFixnum}
	for _, n := range tests {
		v := FromFixnum(n)
		if !v.IsFixnum() {
			t.Errorf("FromFixnum(%d).IsFixnum() = false", n)
			continue
		}
		if v.IsFloat() || v.IsRef() || v.IsSymbol() {
			t.Errorf("FromFixnum(%d) reports another type", n)
		}
		if got := v.Fixnum(); got != n {
			t.Errorf("FromFixnum(%d).Fixnum() = %d", n, got)
		}
	}
}

func TestTryFromFixnumOutOfRange(t *testing.T) {
	if _, ok := TryFromFixnum(MaxFixnum + 1); ok {
		t.Error("Expected MaxFixnum+1 to be rejected")
	}
	if _, ok := TryFromFixnum(MinFixnum - 1); ok {
		t.Error("Expected MinFixnum-1 to be rejected")
	}
}

// ---------------------------------------------------------------------------
// Specials
// ---------------------------------------------------------------------------

func TestSpecialValues(t *testing.T) {
	if Nil.IsTruthy() || False.IsTruthy() {
		t.Error("nil and false must be falsy")
	}
	if !True.IsTruthy() || !FromFixnum(0).IsTruthy() {
		t.Error("true and 0 must be truthy")
	}
	if Uninit == Nil {
		t.Error("Uninit must differ from nil")
	}
	if !Uninit.IsUninit() || Nil.IsUninit() {
		t.Error("IsUninit mismatch")
	}
	for _, v := range []Value{Nil, True, False, Uninit} {
		if v.IsFloat() {
			t.Errorf("%v reported as float", v)
		}
	}
}

// ---------------------------------------------------------------------------
// Handles
// ---------------------------------------------------------------------------

func TestRefEncoding(t *testing.T) {
	tests := []struct {
		page, cell int
		gen        uint16
	}{
		{0, 0, 0},
		{1, 4031, 7},
		{refPageMask, refCellMask, 0xFFFF},
	}
	for _, tt := range tests {
		r := makeRef(tt.page, tt.cell, tt.gen)
		v := FromRef(r)
		if !v.IsRef() {
			t.Fatalf("FromRef(%v) not a ref", r)
		}
		got := v.Ref()
		if got.Page() != tt.page || got.Cell() != tt.cell || got.Gen() != tt.gen {
			t.Errorf("ref roundtrip = (%d,%d,%d), want (%d,%d,%d)",
				got.Page(), got.Cell(), got.Gen(), tt.page, tt.cell, tt.gen)
		}
	}
}

func TestFrameEncoding(t *testing.T) {
	for _, off := range []int{0, 1, 17, 8191} {
		v := EncodeFrame(off)
		if !v.IsFrame() {
			t.Fatalf("EncodeFrame(%d) not a frame", off)
		}
		if got := v.FrameOffset(); got != off {
			t.Errorf("FrameOffset() = %d, want %d", got, off)
		}
	}
}

func TestBlockRefEncoding(t *testing.T) {
	v := encodeBlockRef(FnID(123), 456)
	if !v.IsBlockRef() {
		t.Fatal("expected block ref")
	}
	fid, frame := v.blockRef()
	if fid != 123 || frame != 456 {
		t.Errorf("blockRef() = (%d,%d), want (123,456)", fid, frame)
	}
}

func TestSymbolEncoding(t *testing.T) {
	v := FromSymbol(IdentID(99))
	if !v.IsSymbol() || v.Symbol() != 99 {
		t.Errorf("symbol roundtrip failed: %v", v)
	}
}
