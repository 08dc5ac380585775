package hashdial

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRing_Property_SameMembershipSameOwners checks that two independently
// constructed rings with the same replica count, hash and node additions
// agree on every lookup.
func TestRing_Property_SameMembershipSameOwners(t *testing.T) {
	nodes := []string{"n1", "n2", "n3"}

	ring1 := NewRing(128, nil)
	ring2 := NewRing(128, nil)
	for _, id := range nodes {
		require.NoError(t, ring1.AddNode(id))
		require.NoError(t, ring2.AddNode(id))
	}

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		owner1, err := ring1.Locate(key)
		require.NoError(t, err)
		owner2, err := ring2.Locate(key)
		require.NoError(t, err)
		assert.Equal(t, owner1, owner2, "rings disagree on key %s", key)
	}
}

// TestRing_Property_MinimalDisruption removes one node out of four and checks
// that exactly the keys it owned move, and that their share is close to 1/4.
func TestRing_Property_MinimalDisruption(t *testing.T) {
	nodes := []string{"n1", "n2", "n3", "n4"}
	ring := NewRing(128, nil)
	for _, id := range nodes {
		require.NoError(t, ring.AddNode(id))
	}

	const numKeys = 10000
	before := make(map[string]string, numKeys)
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key-%d", i)
		owner, err := ring.Locate(key)
		require.NoError(t, err)
		before[key] = owner
	}

	require.NoError(t, ring.RemoveNode("n3"))

	disrupted := 0
	for key, prev := range before {
		owner, err := ring.Locate(key)
		require.NoError(t, err)
		if prev == "n3" {
			disrupted++
			assert.NotEqual(t, "n3", owner)
		} else {
			assert.Equal(t, prev, owner, "key %s moved although its owner stayed", key)
		}
	}

	fraction := float64(disrupted) / numKeys
	assert.InDelta(t, 0.25, fraction, 0.15, "disrupted fraction should be about 1/N")
}

// TestRing_Property_AddThenRemoveRestoresOwners verifies that AddNode(x)
// followed by RemoveNode(x) leaves every lookup exactly as it was.
func TestRing_Property_AddThenRemoveRestoresOwners(t *testing.T) {
	ring := NewRing(128, nil)
	for _, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, ring.AddNode(id))
	}

	const numKeys = 2000
	before := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		owner, err := ring.Locate(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		before[i] = owner
	}

	require.NoError(t, ring.AddNode("n4"))
	require.NoError(t, ring.RemoveNode("n4"))

	for i := 0; i < numKeys; i++ {
		owner, err := ring.Locate(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		assert.Equal(t, before[i], owner, "key-%d", i)
	}
}

// TestRing_Property_NoDuplicatePositions inspects the point slice after a
// mixed add/remove history: positions strictly increase and every member owns
// exactly replicaCount points.
func TestRing_Property_NoDuplicatePositions(t *testing.T) {
	const replicas = 64
	ring := NewRing(replicas, nil)
	for i := 0; i < 6; i++ {
		require.NoError(t, ring.AddNode(fmt.Sprintf("n%d", i)))
	}
	require.NoError(t, ring.RemoveNode("n2"))
	require.NoError(t, ring.RemoveNode("n5"))
	require.NoError(t, ring.AddNode("n6"))
	require.NoError(t, ring.AddNode("n2"))

	state := ring.state.Load()
	require.Len(t, state.points, len(state.nodes)*replicas)

	perOwner := make(map[string]int)
	for i, p := range state.points {
		perOwner[p.owner]++
		if i > 0 {
			assert.Greater(t, p.position, state.points[i-1].position,
				"positions must be strictly increasing")
		}
	}

	assert.Len(t, perOwner, len(ring.Nodes()))
	for owner, count := range perOwner {
		assert.Equal(t, replicas, count, "node %s", owner)
		assert.Contains(t, ring.Nodes(), owner)
	}
}

// TestRing_Property_LocateDuringMutation runs lookups concurrently with
// membership churn. Readers must always observe a complete snapshot: either
// an error on a momentarily empty ring or a node that was a member of some
// published state.
func TestRing_Property_LocateDuringMutation(t *testing.T) {
	ring := NewRing(32, nil)
	require.NoError(t, ring.AddNode("stable"))

	valid := map[string]bool{"stable": true}
	for i := 0; i < 8; i++ {
		valid[fmt.Sprintf("churn-%d", i)] = true
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-done:
					return
				default:
				}
				owner, err := ring.Locate(fmt.Sprintf("key-%d-%d", g, i))
				if assert.NoError(t, err) {
					assert.True(t, valid[owner], "unknown owner %q", owner)
				}
			}
		}(g)
	}

	for round := 0; round < 50; round++ {
		id := fmt.Sprintf("churn-%d", round%8)
		require.NoError(t, ring.AddNode(id))
		require.NoError(t, ring.RemoveNode(id))
	}
	close(done)
	wg.Wait()
}
