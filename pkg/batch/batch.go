package batch

import (
	"gonum.org/v1/gonum/mat"

	"hsibatch/internal/models"
	"hsibatch/pkg/pool"
)

// Batch is an ordered run of samples. Samples are owned copies and may be
// modified freely.
type Batch struct {
	Samples []pool.Sample
}

// Len returns the number of samples
func (b Batch) Len() int { return len(b.Samples) }

// Features stacks the spectral vectors into a samples x bands matrix. It
// returns nil for empty batches and patch batches.
func (b Batch) Features() *mat.Dense {
	if len(b.Samples) == 0 || len(b.Samples[0].Feature) == 0 {
		return nil
	}
	bands := len(b.Samples[0].Feature)
	data := make([]float64, 0, len(b.Samples)*bands)
	for _, s := range b.Samples {
		data = append(data, s.Feature...)
	}
	return mat.NewDense(len(b.Samples), bands, data)
}

// ClassIDs returns the class id of every sample
func (b Batch) ClassIDs() []int {
	ids := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		ids[i] = s.ClassID
	}
	return ids
}

// RawLabels returns the raw label of every sample
func (b Batch) RawLabels() []int {
	out := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.RawLabel
	}
	return out
}

// Coords returns the coordinate of every sample
func (b Batch) Coords() []models.Coord {
	out := make([]models.Coord, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Coord
	}
	return out
}

// SourceIndices returns the source image index of every sample
func (b Batch) SourceIndices() []int {
	out := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.SourceIndex
	}
	return out
}

// LabelVector concatenates the class ids of all batches in order, for
// comparing against predictions made batch by batch
func LabelVector(batches []Batch) []int {
	var out []int
	for _, b := range batches {
		out = append(out, b.ClassIDs()...)
	}
	return out
}

// TotalSamples returns the number of samples across batches
func TotalSamples(batches []Batch) int {
	n := 0
	for _, b := range batches {
		n += b.Len()
	}
	return n
}
