package quota

import "fmt"

// Unit is one generation call: a chunk, a tier on each axis and how many
// items to ask for. An empty tier name means the axis was not requested for
// these items.
type Unit struct {
	ChunkIndex int    `json:"chunk_index"`
	Difficulty string `json:"difficulty,omitempty"`
	Cognitive  string `json:"cognitive_level,omitempty"`
	Count      int    `json:"count"`
}

func (u Unit) label() string {
	return fmt.Sprintf("difficulty %q / cognitive level %q", u.Difficulty, u.Cognitive)
}

// pairTiers zips the request's difficulty slots with its cognitive slots,
// both expanded in canonical tier order. Only the longer axis has leftovers,
// which pair with an empty tier. Equal neighbouring pairs merge; zipping in
// canonical order makes equal pairs neighbours, so the result has no
// duplicates and its counts sum to Requirement.Total.
func pairTiers(req Requirement) []Unit {
	d := expand(DifficultyTiers, req.Difficulty)
	c := expand(CognitiveTiers, req.Cognitive)

	var pairs []Unit
	for k := range max(len(d), len(c)) {
		var dt, ct string
		if k < len(d) {
			dt = d[k]
		}
		if k < len(c) {
			ct = c[k]
		}
		if n := len(pairs); n > 0 && pairs[n-1].Difficulty == dt && pairs[n-1].Cognitive == ct {
			pairs[n-1].Count++
			continue
		}
		pairs = append(pairs, Unit{Difficulty: dt, Cognitive: ct, Count: 1})
	}
	return pairs
}

// TotalCount sums Count over units.
func TotalCount(units []Unit) int {
	n := 0
	for _, u := range units {
		n += u.Count
	}
	return n
}

func expand(tiers []Tier, counts map[string]int) []string {
	var out []string
	for _, t := range tiers {
		for n := counts[t.Name]; n > 0; n-- {
			out = append(out, t.Name)
		}
	}
	return out
}
