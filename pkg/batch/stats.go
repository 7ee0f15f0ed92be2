package batch

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Composition describes the class make-up of one batch
type Composition struct {
	// Classes lists the class ids present, ascending
	Classes []int

	// Counts and Proportions are aligned with Classes
	Counts      []int
	Proportions []float64

	// Entropy is the Shannon entropy (nats) of Proportions
	Entropy float64
}

// Compose computes the class composition of b
func Compose(b Batch) Composition {
	counts := make(map[int]int)
	for _, s := range b.Samples {
		counts[s.ClassID]++
	}
	var c Composition
	for id := range counts {
		c.Classes = append(c.Classes, id)
	}
	sort.Ints(c.Classes)
	for _, id := range c.Classes {
		c.Counts = append(c.Counts, counts[id])
		c.Proportions = append(c.Proportions, float64(counts[id])/float64(b.Len()))
	}
	if len(c.Proportions) > 0 {
		c.Entropy = stat.Entropy(c.Proportions)
	}
	return c
}

// Summarize composes every batch
func Summarize(batches []Batch) []Composition {
	out := make([]Composition, len(batches))
	for i, b := range batches {
		out[i] = Compose(b)
	}
	return out
}
