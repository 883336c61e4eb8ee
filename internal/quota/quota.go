// Package quota spreads a requested number of items across content chunks.
// The two axes classify the same items, so they are first paired into
// (difficulty, cognitive level) tiers and each pair is apportioned over the
// chunks; every per-axis tier total is reproduced exactly.
package quota

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dgallion1/quizgest/internal/doctree"
)

var (
	// ErrInvalidRequirement covers unknown tiers, negative counts and empty requests.
	ErrInvalidRequirement = errors.New("invalid quota requirement")
	// ErrUnsatisfiable means a non-zero count has nowhere to go.
	ErrUnsatisfiable = errors.New("unsatisfiable quota")
)

// Requirement maps tier names to item counts on each axis.
type Requirement struct {
	Difficulty map[string]int `json:"difficulty"`
	Cognitive  map[string]int `json:"cognitive_level"`
}

// Validate rejects unknown tier names, negative counts and a request for nothing.
func (r Requirement) Validate() error {
	for name, n := range r.Difficulty {
		if _, ok := LookupDifficulty(name); !ok {
			return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequirement, name)
		}
		if n < 0 {
			return fmt.Errorf("%w: negative count for difficulty %q", ErrInvalidRequirement, name)
		}
	}
	for name, n := range r.Cognitive {
		if _, ok := LookupCognitive(name); !ok {
			return fmt.Errorf("%w: unknown cognitive level %q", ErrInvalidRequirement, name)
		}
		if n < 0 {
			return fmt.Errorf("%w: negative count for cognitive level %q", ErrInvalidRequirement, name)
		}
	}
	if r.Total() == 0 {
		return fmt.Errorf("%w: no items requested", ErrInvalidRequirement)
	}
	return nil
}

// DifficultyTotal sums the difficulty axis.
func (r Requirement) DifficultyTotal() int { return sum(r.Difficulty) }

// CognitiveTotal sums the cognitive axis.
func (r Requirement) CognitiveTotal() int { return sum(r.Cognitive) }

// Total is the number of items the requirement asks for. The axes classify
// the same items, so it is the larger of the two axis sums.
func (r Requirement) Total() int {
	return max(r.DifficultyTotal(), r.CognitiveTotal())
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// Allocation is the outcome of distributing a requirement. Quotas is
// index-aligned with the chunks; Units lists the generation calls in chunk
// order and asks for exactly Requirement.Total items.
type Allocation struct {
	Quotas []Requirement
	Units  []Unit
}

// Distribute splits req across chunks weighted by their token estimates.
func Distribute(chunks []doctree.Chunk, req Requirement) (Allocation, error) {
	weights := make([]int, len(chunks))
	for i, c := range chunks {
		weights[i] = c.Tokens
	}
	return DistributeWeights(weights, req)
}

// DistributeWeights is Distribute over raw weights. Each pair tier is
// apportioned on its own, so a chunk's difficulty and cognitive counts
// always describe the same items.
func DistributeWeights(weights []int, req Requirement) (Allocation, error) {
	pairs := pairTiers(req)
	shares := make([][]int, len(pairs))
	for p, u := range pairs {
		s, err := Apportion(u.Count, weights)
		if err != nil {
			return Allocation{}, fmt.Errorf("%s: %w", u.label(), err)
		}
		shares[p] = s
	}

	alloc := Allocation{Quotas: make([]Requirement, len(weights))}
	for i := range weights {
		q := Requirement{
			Difficulty: make(map[string]int, len(req.Difficulty)),
			Cognitive:  make(map[string]int, len(req.Cognitive)),
		}
		for name := range req.Difficulty {
			q.Difficulty[name] = 0
		}
		for name := range req.Cognitive {
			q.Cognitive[name] = 0
		}
		for p, u := range pairs {
			n := shares[p][i]
			if n == 0 {
				continue
			}
			if u.Difficulty != "" {
				q.Difficulty[u.Difficulty] += n
			}
			if u.Cognitive != "" {
				q.Cognitive[u.Cognitive] += n
			}
			alloc.Units = append(alloc.Units, Unit{ChunkIndex: i, Difficulty: u.Difficulty, Cognitive: u.Cognitive, Count: n})
		}
		alloc.Quotas[i] = q
	}
	return alloc, nil
}

// Apportion divides count across weights with the largest-remainder
// (Hamilton) method in exact integer arithmetic. Each slot first receives
// floor(count*w/total); the leftover units go one each to the largest
// remainders, earliest index first on ties. Zero-weight slots get nothing.
func Apportion(count int, weights []int) ([]int, error) {
	shares := make([]int, len(weights))
	if count == 0 {
		return shares, nil
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrInvalidRequirement, count)
	}

	var total int64
	for _, w := range weights {
		if w > 0 {
			total += int64(w)
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: %d items but no content to draw from", ErrUnsatisfiable, count)
	}

	rems := make([]int64, len(weights))
	assigned := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		num := int64(count) * int64(w)
		shares[i] = int(num / total)
		rems[i] = num % total
		assigned += shares[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rems[order[a]] > rems[order[b]]
	})
	for k := 0; k < count-assigned; k++ {
		shares[order[k]]++
	}
	return shares, nil
}
