// Package substrate provides the external collaborators the speculative
// executor is built on top of but does not itself implement: a fixed-size
// thread (goroutine) pool with package/leader topology, a reusable barrier,
// a two-phase global termination detector, and the Range type used to seed
// a worklist.
//
// None of this is specific to the speculative executor. It is the Go
// equivalent of what the Galois C++ runtime calls Substrate: thread pool,
// barrier, and termination detection live below the scheduler and are
// accepted by it as collaborators, not owned by it.
package substrate
