package vm

// ---------------------------------------------------------------------------
// ExecStack: the value stack shared by locals, operands and frame words
// ---------------------------------------------------------------------------

// DefaultStackSize is the capacity of a VM value stack in slots.
const DefaultStackSize = 8192

// ExecStack is a fixed-capacity value stack. The backing array is never
// reallocated, so slot offsets stay valid for the life of the stack.
type ExecStack struct {
	buf []Value
	sp  int
}

// NewExecStack creates a stack with the given capacity.
func NewExecStack(capacity int) *ExecStack {
	if capacity <= 0 {
		capacity = DefaultStackSize
	}
	return &ExecStack{buf: make([]Value, capacity)}
}

// Len returns the number of live slots.
func (s *ExecStack) Len() int { return s.sp }

// Cap returns the fixed capacity.
func (s *ExecStack) Cap() int { return len(s.buf) }

// Reset empties the stack.
func (s *ExecStack) Reset() {
	clear(s.buf[:s.sp])
	s.sp = 0
}

func (s *ExecStack) checkCap(n int) {
	if n > len(s.buf) {
		internalPanic("stack overflow: %d slots requested, capacity %d", n, len(s.buf))
	}
}

func (s *ExecStack) checkIndex(i int) {
	if i < 0 || i >= s.sp {
		internalPanic("stack index %d out of range [0, %d)", i, s.sp)
	}
}

// Push appends v.
func (s *ExecStack) Push(v Value) {
	s.checkCap(s.sp + 1)
	s.buf[s.sp] = v
	s.sp++
}

// Pop removes and returns the top value.
func (s *ExecStack) Pop() Value {
	if s.sp == 0 {
		internalPanic("stack underflow")
	}
	s.sp--
	v := s.buf[s.sp]
	s.buf[s.sp] = Nil
	return v
}

// PopN removes the top n values and returns a copy of them in push order.
func (s *ExecStack) PopN(n int) []Value {
	if n > s.sp {
		internalPanic("stack underflow: pop %d of %d", n, s.sp)
	}
	out := make([]Value, n)
	copy(out, s.buf[s.sp-n:s.sp])
	clear(s.buf[s.sp-n : s.sp])
	s.sp -= n
	return out
}

// Top returns the top value without removing it.
func (s *ExecStack) Top() Value {
	if s.sp == 0 {
		internalPanic("stack underflow")
	}
	return s.buf[s.sp-1]
}

// Peek returns the value n slots below the top (0 = top).
func (s *ExecStack) Peek(n int) Value {
	s.checkIndex(s.sp - 1 - n)
	return s.buf[s.sp-1-n]
}

// Get returns the slot at absolute index i.
func (s *ExecStack) Get(i int) Value {
	s.checkIndex(i)
	return s.buf[i]
}

// Set stores v at absolute index i.
func (s *ExecStack) Set(i int, v Value) {
	s.checkIndex(i)
	s.buf[i] = v
}

// Grow appends n nil slots.
func (s *ExecStack) Grow(n int) {
	s.checkCap(s.sp + n)
	for i := s.sp; i < s.sp+n; i++ {
		s.buf[i] = Nil
	}
	s.sp += n
}

// ResizeTo sets the length, nil-filling new slots.
func (s *ExecStack) ResizeTo(n int) {
	if n < 0 {
		internalPanic("negative stack length %d", n)
	}
	if n > s.sp {
		s.Grow(n - s.sp)
		return
	}
	clear(s.buf[n:s.sp])
	s.sp = n
}

// Insert places v at index i, shifting the slots above it up by one.
func (s *ExecStack) Insert(i int, v Value) {
	if i < 0 || i > s.sp {
		internalPanic("stack insert at %d out of range [0, %d]", i, s.sp)
	}
	s.checkCap(s.sp + 1)
	copy(s.buf[i+1:s.sp+1], s.buf[i:s.sp])
	s.buf[i] = v
	s.sp++
}

// Remove deletes and returns the slot at index i.
func (s *ExecStack) Remove(i int) Value {
	s.checkIndex(i)
	v := s.buf[i]
	copy(s.buf[i:], s.buf[i+1:s.sp])
	s.sp--
	s.buf[s.sp] = Nil
	return v
}

// Extend appends vs.
func (s *ExecStack) Extend(vs []Value) {
	s.checkCap(s.sp + len(vs))
	copy(s.buf[s.sp:], vs)
	s.sp += len(vs)
}

// CopyWithin copies n slots from src to dst. The ranges may overlap and
// must lie within the live region.
func (s *ExecStack) CopyWithin(src, dst, n int) {
	if n == 0 {
		return
	}
	if src < 0 || dst < 0 || src+n > s.sp || dst+n > s.sp {
		internalPanic("stack copy [%d,%d) -> [%d,%d) out of range [0, %d)", src, src+n, dst, dst+n, s.sp)
	}
	copy(s.buf[dst:dst+n], s.buf[src:src+n])
}

// Fill sets slots [from, to) to v.
func (s *ExecStack) Fill(from, to int, v Value) {
	if from < 0 || to > s.sp || from > to {
		internalPanic("stack fill [%d,%d) out of range [0, %d)", from, to, s.sp)
	}
	for i := from; i < to; i++ {
		s.buf[i] = v
	}
}

// Slice returns the live slots [from, to). The result aliases the stack
// and is only valid until the next mutation.
func (s *ExecStack) Slice(from, to int) []Value {
	if from < 0 || to > s.sp || from > to {
		internalPanic("stack slice [%d,%d) out of range [0, %d)", from, to, s.sp)
	}
	return s.buf[from:to]
}

// live returns every live slot, for GC marking.
func (s *ExecStack) live() []Value {
	return s.buf[:s.sp]
}

// window exposes the full backing array to frame views.
func (s *ExecStack) window() []Value {
	return s.buf
}
