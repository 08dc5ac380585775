// Package hashdial implements hash-based decision making: decisions that are
// deterministic on input, but probabilistic across a set of inputs.
//
// For example, a set of components in a distributed system that wish to log
// the *same* 1% of requests, without coordinating, can do so as such:
//
//	if hashdial.Decide([]byte(request.ID), 0.01) {
//		logRequest(request)
//	}
//
// The package also provides a consistent-hashing Ring that maps keys to a
// stable set of nodes such that adding or removing a node remaps only a
// small fraction of keys. Ring lookups never block each other or an in-flight
// membership change.
//
// All decisions are pure functions of their inputs; two processes computing
// over the same data agree without communicating.
package hashdial
