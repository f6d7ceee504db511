package vm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  *RubyError
		want string
	}{
		{ErrArgumentWrong(3, 2), "ArgumentError: wrong number of arguments (given 3, expected 2)"},
		{ErrArgumentRange(1, 2, 4), "ArgumentError: wrong number of arguments (given 1, expected 2..4)"},
		{ErrArgumentRange(1, 2, 2), "ArgumentError: wrong number of arguments (given 1, expected 2)"},
		{ErrArgumentMin(0, 1), "ArgumentError: wrong number of arguments (given 0, expected 1+)"},
		{ErrDeadFiber(), "FiberError: dead fiber called"},
		{ErrZeroDivision(), "ZeroDivisionError: divided by 0"},
		{ErrUndefinedKeyword(":z"), "ArgumentError: unknown keyword: :z"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestErrorKindHelpers(t *testing.T) {
	wrapped := fmt.Errorf("driver: %w", ErrStopIteration("Iteration reached an end."))
	if !IsStopIteration(wrapped) {
		t.Error("IsStopIteration should see through wrapping")
	}
	if IsFiberError(wrapped) {
		t.Error("StopIteration is not a FiberError")
	}
	if !errors.Is(ErrDeadFiber(), &RubyError{Kind: ErrKindFiber}) {
		t.Error("errors.Is should match by kind")
	}
	if errors.Is(ErrDeadFiber(), &RubyError{Kind: ErrKindFiber, Message: "other"}) {
		t.Error("errors.Is should compare messages when given")
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf(plain error) should report false")
	}
}

func TestControlSignals(t *testing.T) {
	mr := methodReturn(FromFixnum(1), EncodeFrame(12))
	if !mr.Kind.IsControl() || mr.target != EncodeFrame(12) {
		t.Errorf("methodReturn = %+v", mr)
	}
	br := blockReturn(Nil, EncodeFrame(3))
	if !br.Kind.IsControl() {
		t.Error("blockReturn should be a control signal")
	}
	if ErrRuntime("x").Kind.IsControl() {
		t.Error("RuntimeError is not a control signal")
	}
}

func TestInternalPanic(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InternalError)
		if !ok {
			t.Fatalf("recovered %T, want *InternalError", r)
		}
		if !strings.Contains(ie.Error(), "page 9") {
			t.Errorf("message = %q", ie.Error())
		}
	}()
	internalPanic("pointer outside any page: page %d", 9)
}

func TestErrorKindString(t *testing.T) {
	if ErrKindLocalJump.String() != "LocalJumpError" {
		t.Errorf("String() = %q", ErrKindLocalJump.String())
	}
	if ErrorKind(200).String() != "ErrorKind(200)" {
		t.Errorf("String() = %q", ErrorKind(200).String())
	}
}
