// Package worklist provides the pluggable container the speculative
// executor pulls work items from. The executor treats a Worklist as a black
// box behind the interface in this package, except for the optional
// EmptyHinter it probes for via a type assertion.
package worklist
