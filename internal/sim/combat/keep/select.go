// Package keep decides which dropped stacks survive a combat death and holds
// them until the owner respawns.
package keep

import (
	"math/rand/v2"
	"slices"

	"combatkeep.ai/internal/sim/item"
)

// Rand is the subset of *rand.Rand used by Pick.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the runtime's shared generator, which is safe for
// concurrent use and unseeded.
var DefaultRand Rand = globalRand{}

// Count is how many of n dropped stacks a tagged player keeps.
func Count(n int) int {
	if n <= 0 {
		return 0
	}
	return n / 2
}

// Pick returns k distinct indices in [0,n), uniformly without replacement,
// sorted ascending. k is clamped to [0,n].
func Pick(n, k int, r Rand) []int {
	if k <= 0 || n <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	if r == nil {
		r = DefaultRand
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + r.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	picked := idx[:k]
	slices.Sort(picked)
	return picked
}

// Split walks drops in order. Stacks at a picked index are deep-copied into
// kept; the rest go to remaining as-is. Both keep drop-list order.
// Out-of-range or repeated indices are ignored.
func Split(drops []*item.Stack, picked []int) (kept, remaining []*item.Stack) {
	chosen := make([]bool, len(drops))
	n := 0
	for _, i := range picked {
		if i < 0 || i >= len(drops) || chosen[i] {
			continue
		}
		chosen[i] = true
		n++
	}
	kept = make([]*item.Stack, 0, n)
	remaining = make([]*item.Stack, 0, len(drops)-n)
	for i, s := range drops {
		if chosen[i] {
			kept = append(kept, s.Clone())
			continue
		}
		remaining = append(remaining, s)
	}
	return kept, remaining
}

// Select applies Count, Pick and Split to drops.
func Select(drops []*item.Stack, r Rand) (kept, remaining []*item.Stack) {
	k := Count(len(drops))
	if k == 0 {
		return nil, drops
	}
	return Split(drops, Pick(len(drops), k, r))
}
