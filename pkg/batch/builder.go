// Package batch turns a pixel pool into fixed-size, class-stratified batches.
//
// Each full batch draws from every class still present a share of the batch
// proportional to that class's remaining count, rounded half to even and
// never below one sample. The class that would overflow the batch is
// truncated. When rounding leaves the batch short, the most populous
// classes (counted before the pass) fill it. Samples are drawn without
// replacement, so a run consumes the pool exactly once; whatever cannot fill
// a whole batch is emitted as one shorter final batch.
//
// Runs are reproducible only with a seeded Sampler (see NewSampler). A
// Builder given a nil Sampler seeds one from the clock, so its batches
// differ from run to run.
package batch

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"hsibatch/internal/models"
	"hsibatch/pkg/cube"
	"hsibatch/pkg/pool"
)

// ErrInvalidBatchSize is returned for batch sizes below one
var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

// Builder produces batches from pools. A Builder is not safe for concurrent
// use because its Sampler carries state; pools are never modified.
type Builder struct {
	batchSize int
	sampler   Sampler
}

// NewBuilder creates a builder. A nil sampler is replaced by one seeded from
// the clock.
func NewBuilder(batchSize int, sampler Sampler) (*Builder, error) {
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	if sampler == nil {
		sampler = NewSampler(uint64(time.Now().UnixNano()))
	}
	return &Builder{batchSize: batchSize, sampler: sampler}, nil
}

// BatchSize returns the target batch length
func (b *Builder) BatchSize() int { return b.batchSize }

// Build draws a fresh sequence of batches from p
func (b *Builder) Build(p *pool.Pool, mode models.Mode) ([]Batch, error) {
	switch mode {
	case models.Pointwise:
		return b.pointwise(p), nil
	case models.Spatial:
		return b.spatial(p)
	default:
		return nil, fmt.Errorf("unsupported mode %v", mode)
	}
}

// BuildBatches is a one-shot helper around NewBuilder and Build
func BuildBatches(p *pool.Pool, batchSize int, mode models.Mode, sampler Sampler) ([]Batch, error) {
	b, err := NewBuilder(batchSize, sampler)
	if err != nil {
		return nil, err
	}
	return b.Build(p, mode)
}

// pointwise stratifies pool indices by class id
func (b *Builder) pointwise(p *pool.Pool) []Batch {
	work := newStrata()
	for i := 0; i < p.NumSamples(); i++ {
		work.add(p.ClassID(i), i)
	}
	work.seal()

	materialize := func(picks []pick) Batch {
		samples := make([]pool.Sample, len(picks))
		for i, pk := range picks {
			samples[i] = p.Sample(pk.member)
		}
		return Batch{Samples: samples}
	}

	var batches []Batch
	for work.total >= b.batchSize {
		batches = append(batches, materialize(work.drawBatch(b.batchSize, b.sampler)))
	}
	if work.total > 0 {
		rest := work.drain()
		sort.Slice(rest, func(i, j int) bool { return rest[i].member < rest[j].member })
		batches = append(batches, materialize(rest))
	}
	return batches
}

// spatial stratifies cells of a private copy of the appended label map by
// raw label; drawn cells are zeroed so they cannot be drawn again
func (b *Builder) spatial(p *pool.Pool) ([]Batch, error) {
	sp := p.Spatial()
	if sp == nil {
		return nil, fmt.Errorf("pool has no spatial context; build it from a cube store")
	}

	grid := sp.Grid.Clone()
	work := newStrata()
	for cell, label := range grid.Data {
		if label != 0 {
			work.add(label, cell)
		}
	}
	work.seal()
	work.onTake = func(cell int) { grid.Data[cell] = 0 }

	materialize := func(picks []pick) (Batch, error) {
		samples := make([]pool.Sample, len(picks))
		for i, pk := range picks {
			s, err := patchSample(sp, grid.Height, grid.Width, pk)
			if err != nil {
				return Batch{}, err
			}
			samples[i] = s
		}
		return Batch{Samples: samples}, nil
	}

	var batches []Batch
	for work.total >= b.batchSize {
		batch, err := materialize(work.drawBatch(b.batchSize, b.sampler))
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if work.total > 0 {
		batch, err := materialize(work.drain())
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// patchSample extracts the patch around a grid cell and resolves its
// provenance
func patchSample(sp *pool.Spatial, height, width int, pk pick) (pool.Sample, error) {
	x, y := pk.member/width, pk.member%width
	patch, err := cube.ExtractPatch(sp.Cube, x, y, sp.PatchSize)
	if err != nil {
		return pool.Sample{}, err
	}
	source, localRow, err := cube.LocateRow(sp.RowOffsets, height, x)
	if err != nil {
		return pool.Sample{}, err
	}
	classID, err := sp.ClassMap.ClassID(pk.key)
	if err != nil {
		return pool.Sample{}, err
	}
	return pool.Sample{
		Patch:       &patch,
		RawLabel:    pk.key,
		ClassID:     classID,
		Coord:       models.Coord{X: localRow, Y: y},
		Center:      models.Coord{X: x, Y: y},
		SourceIndex: source,
	}, nil
}
