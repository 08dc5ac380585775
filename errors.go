package hashdial

import "errors"

var (
	// ErrDuplicateNode is returned by AddNode when the node is already a
	// member of the ring.
	ErrDuplicateNode = errors.New("hashdial: node already in ring")

	// ErrNodeNotFound is returned by RemoveNode when the node is not a
	// member of the ring.
	ErrNodeNotFound = errors.New("hashdial: node not in ring")

	// ErrEmptyRing is returned by Locate and LocateN when the ring has no
	// nodes.
	ErrEmptyRing = errors.New("hashdial: ring is empty")
)
