package quota

// Tier describes one label on a classification axis.
type Tier struct {
	Name       string
	Descriptor string
	Marks      int // Default weight for items of this tier; zero for cognitive levels.
}

// Difficulty tiers in canonical order.
var DifficultyTiers = []Tier{
	{Name: "easy", Descriptor: "straightforward recall or single-step questions a student who attended the lectures should answer quickly", Marks: 1},
	{Name: "medium", Descriptor: "questions that combine two or more ideas or require a short worked derivation", Marks: 2},
	{Name: "hard", Descriptor: "multi-step questions that require synthesis, non-obvious reasoning or a longer worked answer", Marks: 3},
}

// CognitiveTiers are Bloom's taxonomy levels in canonical order.
var CognitiveTiers = []Tier{
	{Name: "remember", Descriptor: "recall facts, terms and basic concepts"},
	{Name: "understand", Descriptor: "explain ideas or concepts in the student's own words"},
	{Name: "apply", Descriptor: "use the material in a new, concrete situation"},
	{Name: "analyze", Descriptor: "draw connections, compare and break ideas into parts"},
	{Name: "evaluate", Descriptor: "justify a position or decision against criteria"},
	{Name: "create", Descriptor: "produce new or original work from the material"},
}

// LookupDifficulty returns the difficulty tier with the given name.
func LookupDifficulty(name string) (Tier, bool) {
	return lookup(DifficultyTiers, name)
}

// LookupCognitive returns the cognitive tier with the given name.
func LookupCognitive(name string) (Tier, bool) {
	return lookup(CognitiveTiers, name)
}

func lookup(tiers []Tier, name string) (Tier, bool) {
	for _, t := range tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}
