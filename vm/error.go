package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Runtime errors and control signals
// ---------------------------------------------------------------------------

// ErrorKind classifies a RubyError.
type ErrorKind uint8

const (
	ErrKindName ErrorKind = iota
	ErrKindNoMethod
	ErrKindArgument
	ErrKindIndex
	ErrKindType
	ErrKindRegexp
	ErrKindFiber
	ErrKindLocalJump
	ErrKindStopIteration
	ErrKindRuntime
	ErrKindLoad
	ErrKindRange
	ErrKindZeroDivision
	ErrKindDomain

	// Control signals travel through the error channel but are consumed by
	// the VM before they reach user code.
	ErrKindMethodReturn
	ErrKindBlockReturn
	ErrKindException

	ErrKindInternal
)

var errorKindNames = [...]string{
	ErrKindName:          "NameError",
	ErrKindNoMethod:      "NoMethodError",
	ErrKindArgument:      "ArgumentError",
	ErrKindIndex:         "IndexError",
	ErrKindType:          "TypeError",
	ErrKindRegexp:        "RegexpError",
	ErrKindFiber:         "FiberError",
	ErrKindLocalJump:     "LocalJumpError",
	ErrKindStopIteration: "StopIteration",
	ErrKindRuntime:       "RuntimeError",
	ErrKindLoad:          "LoadError",
	ErrKindRange:         "RangeError",
	ErrKindZeroDivision:  "ZeroDivisionError",
	ErrKindDomain:        "DomainError",
	ErrKindMethodReturn:  "MethodReturn",
	ErrKindBlockReturn:   "BlockReturn",
	ErrKindException:     "Exception",
	ErrKindInternal:      "InternalError",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// IsControl reports whether k is a non-local control signal.
func (k ErrorKind) IsControl() bool {
	return k == ErrKindMethodReturn || k == ErrKindBlockReturn
}

// RubyError is the error type every VM operation returns.
type RubyError struct {
	Kind    ErrorKind
	Message string
	// Value is the returned value of a control signal or the raised
	// object of an Exception.
	Value Value
	// target identifies the frame a control signal unwinds to.
	target Value
}

func (e *RubyError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Is matches another *RubyError of the same kind, so that
// errors.Is(err, &RubyError{Kind: ErrKindFiber}) works.
func (e *RubyError) Is(target error) bool {
	t, ok := target.(*RubyError)
	return ok && t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *RubyError {
	return &RubyError{Kind: kind, Message: fmt.Sprintf(format, args...), Value: Nil}
}

// KindOf returns the kind of err if it is a RubyError.
func KindOf(err error) (ErrorKind, bool) {
	var re *RubyError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// IsStopIteration reports whether err signals an exhausted enumerator.
func IsStopIteration(err error) bool {
	k, ok := KindOf(err)
	return ok && k == ErrKindStopIteration
}

// IsFiberError reports whether err is a FiberError.
func IsFiberError(err error) bool {
	k, ok := KindOf(err)
	return ok && k == ErrKindFiber
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// ErrArgumentWrong reports an exact arity mismatch.
func ErrArgumentWrong(given, expected int) *RubyError {
	return newError(ErrKindArgument, "wrong number of arguments (given %d, expected %d)", given, expected)
}

// ErrArgumentRange reports an arity outside [min, max].
func ErrArgumentRange(given, min, max int) *RubyError {
	if min == max {
		return ErrArgumentWrong(given, min)
	}
	return newError(ErrKindArgument, "wrong number of arguments (given %d, expected %d..%d)", given, min, max)
}

// ErrArgumentMin reports fewer arguments than an open-ended minimum.
func ErrArgumentMin(given, min int) *RubyError {
	return newError(ErrKindArgument, "wrong number of arguments (given %d, expected %d+)", given, min)
}

// ErrArgument is a generic ArgumentError.
func ErrArgument(format string, args ...any) *RubyError {
	return newError(ErrKindArgument, format, args...)
}

// ErrUndefinedKeyword is raised for a keyword the callee does not declare.
// key is the keyword as written, e.g. ":z".
func ErrUndefinedKeyword(key string) *RubyError {
	return newError(ErrKindArgument, "unknown keyword: %s", key)
}

// ErrNoMethod reports a failed method lookup.
func ErrNoMethod(name, receiver string) *RubyError {
	return newError(ErrKindNoMethod, "undefined method `%s' for %s", name, receiver)
}

// ErrName reports an unresolved constant or name.
func ErrName(format string, args ...any) *RubyError {
	return newError(ErrKindName, format, args...)
}

// ErrType reports an operand of the wrong type.
func ErrType(format string, args ...any) *RubyError {
	return newError(ErrKindType, format, args...)
}

// ErrIndex reports an out of range index.
func ErrIndex(format string, args ...any) *RubyError {
	return newError(ErrKindIndex, format, args...)
}

// ErrRange reports a value outside its representable range.
func ErrRange(format string, args ...any) *RubyError {
	return newError(ErrKindRange, format, args...)
}

// ErrZeroDivision reports integer division by zero.
func ErrZeroDivision() *RubyError {
	return newError(ErrKindZeroDivision, "divided by 0")
}

// ErrDomain reports an argument outside a math function's domain.
func ErrDomain(format string, args ...any) *RubyError {
	return newError(ErrKindDomain, format, args...)
}

// ErrFiber reports a misuse of a fiber.
func ErrFiber(msg string) *RubyError {
	return newError(ErrKindFiber, "%s", msg)
}

// ErrDeadFiber is returned when resuming a finished fiber.
func ErrDeadFiber() *RubyError {
	return ErrFiber("dead fiber called")
}

// ErrStopIteration signals that an enumerator has no more values.
func ErrStopIteration(msg string) *RubyError {
	return newError(ErrKindStopIteration, "%s", msg)
}

// ErrLocalJump reports a return or break with nowhere to go.
func ErrLocalJump(msg string) *RubyError {
	return newError(ErrKindLocalJump, "%s", msg)
}

// ErrRuntime is a generic RuntimeError.
func ErrRuntime(format string, args ...any) *RubyError {
	return newError(ErrKindRuntime, format, args...)
}

// ErrLoad reports a failure to load code.
func ErrLoad(format string, args ...any) *RubyError {
	return newError(ErrKindLoad, format, args...)
}

// ErrUnimplemented reports an opcode the dispatch loop does not execute.
func ErrUnimplemented(op Opcode) *RubyError {
	return newError(ErrKindInternal, "unimplemented instruction %s", op)
}

// methodReturn unwinds to the method frame whose environment is target.
func methodReturn(v Value, target Value) *RubyError {
	return &RubyError{Kind: ErrKindMethodReturn, Value: v, target: target}
}

// blockReturn is produced by BREAK and consumed at the sending frame.
func blockReturn(v Value, target Value) *RubyError {
	return &RubyError{Kind: ErrKindBlockReturn, Value: v, target: target}
}

// ---------------------------------------------------------------------------
// Internal defects
// ---------------------------------------------------------------------------

// InternalError signals a broken VM invariant. It is always raised with
// panic and never converted into a runtime error.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

func internalPanic(format string, args ...any) {
	panic(&InternalError{Message: fmt.Sprintf(format, args...)})
}
