package hashdial

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
)

// DefaultReplicas is the number of virtual points placed per node when
// NewRing is given a replica count <= 0. More replicas smooth the load
// distribution (per-node share deviation is roughly O(1/sqrt(replicas)))
// at the cost of memory and slower membership changes.
const DefaultReplicas = 128

// virtualPoint is one position on the keyspace together with the node that
// owns it.
type virtualPoint struct {
	position uint64
	owner    string
}

// ringState is an immutable snapshot of ring membership. Mutators build a
// fresh state and publish it atomically; readers operate on whichever
// snapshot they loaded and never see a partially updated ring.
type ringState struct {
	points []virtualPoint // sorted by position, positions strictly increasing
	nodes  map[string]struct{}
}

// Ring maps keys to nodes via consistent hashing with virtual points.
// Locate is safe for concurrent use and never blocks against mutators;
// AddNode and RemoveNode serialize against each other.
type Ring struct {
	mu       sync.Mutex // serializes mutators
	state    atomic.Pointer[ringState]
	replicas int
	hash     Hash64
}

// NewRing creates an empty ring. replicaCount <= 0 selects DefaultReplicas
// and a nil fn selects DefaultHash. Both are fixed for the ring's lifetime:
// all processes that must agree on key placement have to construct their
// rings with the same pair.
func NewRing(replicaCount int, fn Hash64) *Ring {
	if replicaCount <= 0 {
		replicaCount = DefaultReplicas
	}
	if fn == nil {
		fn = DefaultHash
	}
	r := &Ring{replicas: replicaCount, hash: fn}
	r.state.Store(&ringState{nodes: make(map[string]struct{})})
	return r
}

// AddNode adds nodeID to the ring, placing one virtual point per replica
// index. It returns ErrDuplicateNode if the node is already a member. The
// change is all-or-nothing: a ring observed concurrently is either entirely
// without or entirely with the node.
func (r *Ring) AddNode(nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Load()
	if _, ok := cur.nodes[nodeID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, nodeID)
	}

	points := make([]virtualPoint, len(cur.points), len(cur.points)+r.replicas)
	copy(points, cur.points)

	for i := 0; i < r.replicas; i++ {
		pos := r.freePosition(points, nodeID, i)
		idx := searchPoints(points, pos)
		points = append(points, virtualPoint{})
		copy(points[idx+1:], points[idx:])
		points[idx] = virtualPoint{position: pos, owner: nodeID}
	}

	nodes := make(map[string]struct{}, len(cur.nodes)+1)
	for id := range cur.nodes {
		nodes[id] = struct{}{}
	}
	nodes[nodeID] = struct{}{}

	r.state.Store(&ringState{points: points, nodes: nodes})
	return nil
}

// RemoveNode removes nodeID and exactly its replica-count virtual points,
// identified by owner rather than by recomputing positions: a live ring may
// have resolved collisions differently than a fresh computation would.
// Points of other nodes keep their positions and order. Returns
// ErrNodeNotFound if the node is not a member.
func (r *Ring) RemoveNode(nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Load()
	if _, ok := cur.nodes[nodeID]; !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, nodeID)
	}

	points := make([]virtualPoint, 0, len(cur.points)-r.replicas)
	for _, p := range cur.points {
		if p.owner != nodeID {
			points = append(points, p)
		}
	}

	nodes := make(map[string]struct{}, len(cur.nodes)-1)
	for id := range cur.nodes {
		if id != nodeID {
			nodes[id] = struct{}{}
		}
	}

	r.state.Store(&ringState{points: points, nodes: nodes})
	return nil
}

// Locate returns the node owning key: the owner of the first virtual point at
// or clockwise of the key's position, wrapping past the largest position to
// the smallest. For a fixed ring state it is a pure function of key. Returns
// ErrEmptyRing if the ring has no nodes.
func (r *Ring) Locate(key string) (string, error) {
	s := r.state.Load()
	if len(s.points) == 0 {
		return "", fmt.Errorf("%w: locate %q", ErrEmptyRing, key)
	}
	idx := searchPoints(s.points, r.hash([]byte(key)))
	if idx == len(s.points) {
		idx = 0
	}
	return s.points[idx].owner, nil
}

// LocateN returns the first n distinct nodes encountered walking clockwise
// from key's position, starting with Locate's result. Callers use the tail of
// the list to place replicas; the ring itself does no replication. Fewer than
// n nodes are returned when the ring has fewer than n members. Returns
// ErrEmptyRing if the ring has no nodes.
func (r *Ring) LocateN(key string, n int) ([]string, error) {
	s := r.state.Load()
	if len(s.points) == 0 {
		return nil, fmt.Errorf("%w: locate %q", ErrEmptyRing, key)
	}
	if n <= 0 {
		return nil, nil
	}

	idx := searchPoints(s.points, r.hash([]byte(key)))
	if idx == len(s.points) {
		idx = 0
	}

	seen := make(map[string]struct{}, n)
	owners := make([]string, 0, n)
	for i := 0; i < len(s.points) && len(owners) < n; i++ {
		owner := s.points[(idx+i)%len(s.points)].owner
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	return owners, nil
}

// Nodes returns a sorted snapshot of the member node IDs.
func (r *Ring) Nodes() []string {
	s := r.state.Load()
	nodes := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// freePosition computes the position for replica i of nodeID. The base
// position is hash(nodeID + "#" + i); while that position is occupied the
// salt is extended with a collision counter. The result depends only on the
// occupied set and the inputs, so independent processes running the same
// additions from the same state converge on identical rings.
func (r *Ring) freePosition(points []virtualPoint, nodeID string, i int) uint64 {
	key := nodeID + "#" + strconv.Itoa(i)
	pos := r.hash([]byte(key))
	for attempt := 1; occupied(points, pos); attempt++ {
		pos = r.hash([]byte(key + "#" + strconv.Itoa(attempt)))
	}
	return pos
}

// searchPoints returns the index of the first point with position >= pos,
// or len(points) if there is none.
func searchPoints(points []virtualPoint, pos uint64) int {
	return sort.Search(len(points), func(i int) bool {
		return points[i].position >= pos
	})
}

func occupied(points []virtualPoint, pos uint64) bool {
	idx := searchPoints(points, pos)
	return idx < len(points) && points[idx].position == pos
}
