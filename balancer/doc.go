// Package balancer registers a gRPC balancer that routes each RPC to the
// backend owning its affinity key on a consistent-hashing ring. It picks
// among ready connections only; gRPC owns all connection management and
// transport.
package balancer
