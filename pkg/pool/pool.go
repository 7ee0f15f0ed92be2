// Package pool flattens the labeled pixels of many images into index-aligned
// series: feature, raw label, class id, coordinate and source image.
package pool

import (
	"errors"
	"fmt"

	"hsibatch/internal/models"
	"hsibatch/pkg/cube"
	"hsibatch/pkg/labels"
)

// ErrEmptyPool is returned when no image contributes a labeled pixel
var ErrEmptyPool = errors.New("no labeled pixels found in loaded images")

// Sample is one labeled unit with its provenance
type Sample struct {
	// Feature is the spectral vector of the pixel (pointwise mode)
	Feature []float64

	// Patch is the spatial neighborhood (spatial mode only)
	Patch *cube.Patch

	RawLabel int
	ClassID  int

	// Coord is the pixel position inside its source image, in padded
	// space when the pool was built for spatial mode
	Coord models.Coord

	// Center is the patch center in the appended cube (spatial mode only)
	Center models.Coord

	// SourceIndex is the position of the source image in the load order,
	// or -1 when the pool was built without provenance
	SourceIndex int
}

// Spatial carries the stacked arrays needed to build patch batches
type Spatial struct {
	Cube       *models.Cube
	Grid       *models.LabelMap
	RowOffsets []int
	PatchSize  int
	ClassMap   labels.ClassMap
}

// Pool is the flattened, index-aligned sample collection. It is never
// mutated after construction.
type Pool struct {
	features  [][]float64
	rawLabels []int
	classIDs  []int
	coords    []models.Coord
	sources   []int

	numClasses int
	numBands   int
	mode       models.Mode

	spatial *Spatial
}

// Build flattens every image of the store in load order, then by ascending
// label, then row-major. Coordinates are in padded space when the store is
// in spatial mode.
func Build(store *cube.Store, cm labels.ClassMap) (*Pool, error) {
	p := &Pool{
		numBands: store.NumBands(),
		mode:     store.Mode(),
	}

	offset := 0
	if store.Mode() == models.Spatial {
		offset = store.Pad()
	}
	for _, img := range store.Images() {
		groups, err := labels.Index(img.RawLabelMap, cm, offset)
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", img.ID, err)
		}
		src := img.RawCube
		if offset > 0 {
			src = img.PaddedCube
		}
		for _, g := range groups {
			for _, xy := range g.Coords {
				p.append(cloneFloats(src.Pixel(xy.X, xy.Y)), g.Label, g.ClassID, xy, img.Index)
			}
		}
	}
	if len(p.rawLabels) == 0 {
		return nil, ErrEmptyPool
	}
	p.numClasses = countDistinct(p.classIDs)

	if store.AppendedCube() != nil {
		p.spatial = &Spatial{
			Cube:       store.AppendedCube(),
			Grid:       store.AppendedLabelMap(),
			RowOffsets: store.RowOffsets(),
			PatchSize:  store.PatchSize(),
			ClassMap:   cm,
		}
	}
	return p, nil
}

// FromSamples builds a pool from pre-flattened rows without provenance.
// Such pools only support pointwise batches.
func FromSamples(features [][]float64, rawLabels, classIDs []int) (*Pool, error) {
	if len(features) != len(rawLabels) || len(features) != len(classIDs) {
		return nil, fmt.Errorf("series length mismatch: %d features, %d labels, %d class ids",
			len(features), len(rawLabels), len(classIDs))
	}
	if len(features) == 0 {
		return nil, ErrEmptyPool
	}
	p := &Pool{numBands: len(features[0])}
	for i, f := range features {
		if len(f) != p.numBands {
			return nil, fmt.Errorf("feature %d has %d values, expected %d", i, len(f), p.numBands)
		}
		p.append(cloneFloats(f), rawLabels[i], classIDs[i], models.Coord{}, -1)
	}
	p.numClasses = countDistinct(p.classIDs)
	return p, nil
}

func (p *Pool) append(feature []float64, rawLabel, classID int, xy models.Coord, source int) {
	p.features = append(p.features, feature)
	p.rawLabels = append(p.rawLabels, rawLabel)
	p.classIDs = append(p.classIDs, classID)
	p.coords = append(p.coords, xy)
	p.sources = append(p.sources, source)
}

// NumSamples returns the total sample count
func (p *Pool) NumSamples() int { return len(p.rawLabels) }

// NumClasses returns the number of distinct class ids observed
func (p *Pool) NumClasses() int { return p.numClasses }

// NumBands returns the feature length
func (p *Pool) NumBands() int { return p.numBands }

// Mode returns the mode of the store the pool was built from
func (p *Pool) Mode() models.Mode { return p.mode }

// RawLabel returns the raw label of sample i
func (p *Pool) RawLabel(i int) int { return p.rawLabels[i] }

// ClassID returns the class id of sample i
func (p *Pool) ClassID(i int) int { return p.classIDs[i] }

// Coord returns the coordinate of sample i
func (p *Pool) Coord(i int) models.Coord { return p.coords[i] }

// SourceIndex returns the source image index of sample i
func (p *Pool) SourceIndex(i int) int { return p.sources[i] }

// Feature returns the spectral vector of sample i. Callers must not modify it.
func (p *Pool) Feature(i int) []float64 { return p.features[i] }

// Sample returns an owned snapshot of sample i
func (p *Pool) Sample(i int) Sample {
	return Sample{
		Feature:     cloneFloats(p.features[i]),
		RawLabel:    p.rawLabels[i],
		ClassID:     p.classIDs[i],
		Coord:       p.coords[i],
		SourceIndex: p.sources[i],
	}
}

// ClassCounts returns the number of samples per class id
func (p *Pool) ClassCounts() map[int]int {
	counts := make(map[int]int)
	for _, id := range p.classIDs {
		counts[id]++
	}
	return counts
}

// Spatial returns the stacked arrays for patch batches, or nil when the
// pool was built without a store
func (p *Pool) Spatial() *Spatial { return p.spatial }

func countDistinct(values []int) int {
	seen := make(map[int]struct{})
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func cloneFloats(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
