// Package vm implements the Garnet virtual machine, the execution core of a
// Ruby-compatible bytecode interpreter.
//
// This package contains:
//   - NaN-boxed value representation
//   - Instruction set, builder and disassembler
//   - Value stack, control frames and heap-promoted contexts
//   - Argument binding for methods and blocks
//   - Inline method and constant caches keyed on a global version
//   - Allocator and mark-sweep collector
//   - Fibers and external enumerators
//   - Ruby error taxonomy and unwinding
package vm
