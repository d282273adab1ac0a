// Package txn implements conflict detection: a per-thread ConflictContext
// that tracks which logical locks (Lockables) it has acquired during the
// current iteration, and detects collision with another thread's in-flight
// iteration.
//
// The C++ Galois runtime delivers a detected conflict by unwinding the
// operator's call stack (an exception, or a setjmp/longjmp landing pad) so
// the executor regains control in its abort branch. Go has no stack-unwind-
// and-resume primitive other than panic/recover, which is reserved for truly
// exceptional failures; Acquire here instead returns ErrConflict as an
// ordinary error value, which the operator is expected to propagate
// immediately and the executor's doProcess checks after every call.
package txn
