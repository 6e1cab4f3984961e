// Package dispatch fans a signal out to robots concurrently.
//
// A Dispatcher takes a snapshot of the enabled robots, or one named robot,
// and issues one delivery attempt per robot on its own goroutine. Each
// attempt has an independent timeout, so a slow or failing robot never
// delays another or eats into its timeout. Per-robot outcomes are returned
// in a Report; transport failures are logged and never surface as errors.
//
// The only error SendSignal returns is ErrTargetNotFound, when a caller names
// a robot that is absent or disabled.
package dispatch
