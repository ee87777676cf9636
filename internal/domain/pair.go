package domain

// Pair is an unordered combination of two systems. SystemA and SystemB are
// stored in lexicographic order so the pair ID is canonical regardless of
// argument order.
type Pair struct {
	ID      string `json:"pair_id"`
	SystemA string `json:"system_a"`
	SystemB string `json:"system_b"`
}

// NewPair builds the canonical pair for two system IDs.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{
		ID:      a + "_vs_" + b,
		SystemA: a,
		SystemB: b,
	}
}
