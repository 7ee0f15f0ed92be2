package batch

import (
	"errors"
	"sort"
	"testing"

	"hsibatch/internal/models"
	"hsibatch/pkg/cube"
	"hsibatch/pkg/labels"
	"hsibatch/pkg/pool"
)

// firstSampler always picks the first k positions, which makes draws follow
// pool order
type firstSampler struct{}

func (firstSampler) WithoutReplacement(n, k int) []int {
	k = min(k, n)
	idxs := make([]int, k)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

// flatPool builds a pool whose single feature value equals the pool index
func flatPool(t *testing.T, classIDs ...int) *pool.Pool {
	t.Helper()
	features := make([][]float64, len(classIDs))
	for i := range features {
		features[i] = []float64{float64(i)}
	}
	p, err := pool.FromSamples(features, classIDs, classIDs)
	if err != nil {
		t.Fatalf("FromSamples failed: %v", err)
	}
	return p
}

func repeat(classID, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = classID
	}
	return out
}

func classCounts(b Batch) map[int]int {
	counts := make(map[int]int)
	for _, id := range b.ClassIDs() {
		counts[id]++
	}
	return counts
}

func TestProportionalBatches(t *testing.T) {
	p := flatPool(t, append(repeat(1, 10), repeat(2, 2)...)...)
	batches, err := BuildBatches(p, 6, models.Pointwise, NewSampler(1))
	if err != nil {
		t.Fatalf("BuildBatches failed: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("Expected 2 batches, got %d", len(batches))
	}
	for i, b := range batches {
		counts := classCounts(b)
		if b.Len() != 6 || counts[1] != 5 || counts[2] != 1 {
			t.Errorf("Batch %d: expected 5 of class 1 and 1 of class 2, got %v", i, counts)
		}
	}
}

func TestSmallPoolSingleBatch(t *testing.T) {
	p := flatPool(t, 2, 1, 2)
	batches, err := BuildBatches(p, 6, models.Pointwise, NewSampler(7))
	if err != nil {
		t.Fatalf("BuildBatches failed: %v", err)
	}
	if len(batches) != 1 || batches[0].Len() != 3 {
		t.Fatalf("Expected one batch of 3, got %d batches", len(batches))
	}
	for i, s := range batches[0].Samples {
		if s.Feature[0] != float64(i) {
			t.Errorf("Expected leftover batch in pool order, got %v at %d", s.Feature[0], i)
		}
	}
}

func TestShortfallAndTruncation(t *testing.T) {
	p := flatPool(t, append(append(repeat(1, 3), repeat(2, 3)...), repeat(3, 3)...)...)
	batches, err := BuildBatches(p, 4, models.Pointwise, firstSampler{})
	if err != nil {
		t.Fatalf("BuildBatches failed: %v", err)
	}

	want := []map[int]int{
		// one each, shortfall filled from the smallest most populous class
		{1: 2, 2: 1, 3: 1},
		// class 3 is truncated to fit
		{1: 1, 2: 2, 3: 1},
		{3: 1},
	}
	if len(batches) != len(want) {
		t.Fatalf("Expected %d batches, got %d", len(want), len(batches))
	}
	for i, b := range batches {
		got := classCounts(b)
		for id, n := range want[i] {
			if got[id] != n {
				t.Errorf("Batch %d: expected %d of class %d, got %v", i, n, id, got)
			}
		}
	}
}

func TestFillContinuesPastExhaustedClass(t *testing.T) {
	// Ten classes of two: every share rounds down to one, leaving two
	// slots. Class 1 runs dry after one, so class 2 supplies the other.
	var ids []int
	for c := 1; c <= 10; c++ {
		ids = append(ids, repeat(c, 2)...)
	}
	p := flatPool(t, ids...)
	batches, err := BuildBatches(p, 12, models.Pointwise, NewSampler(3))
	if err != nil {
		t.Fatalf("BuildBatches failed: %v", err)
	}
	if len(batches) != 2 || batches[0].Len() != 12 || batches[1].Len() != 8 {
		t.Fatalf("Expected batches of 12 and 8, got %d batches", len(batches))
	}
	counts := classCounts(batches[0])
	for c := 1; c <= 10; c++ {
		want := 1
		if c <= 2 {
			want = 2
		}
		if counts[c] != want {
			t.Errorf("Expected %d of class %d, got %d", want, c, counts[c])
		}
	}
}

func TestBatchesCoverPoolExactlyOnce(t *testing.T) {
	ids := []int{}
	for c, n := range map[int]int{1: 37, 2: 11, 3: 4, 4: 1} {
		ids = append(ids, repeat(c, n)...)
	}
	p := flatPool(t, ids...)

	for _, size := range []int{1, 5, 8, 16, 53, 100} {
		batches, err := BuildBatches(p, size, models.Pointwise, NewSampler(uint64(size)))
		if err != nil {
			t.Fatalf("BuildBatches(%d) failed: %v", size, err)
		}

		wantFull := p.NumSamples() / size
		for i, b := range batches {
			if i < wantFull && b.Len() != size {
				t.Errorf("size %d: batch %d has %d samples", size, i, b.Len())
			}
		}
		wantBatches := wantFull
		if p.NumSamples()%size != 0 {
			wantBatches++
			if last := batches[len(batches)-1].Len(); last != p.NumSamples()%size {
				t.Errorf("size %d: expected final batch of %d, got %d", size, p.NumSamples()%size, last)
			}
		}
		if len(batches) != wantBatches {
			t.Errorf("size %d: expected %d batches, got %d", size, wantBatches, len(batches))
		}

		seen := make(map[int]bool)
		for _, b := range batches {
			for _, s := range b.Samples {
				idx := int(s.Feature[0])
				if seen[idx] {
					t.Errorf("size %d: sample %d drawn twice", size, idx)
				}
				seen[idx] = true
				if s.ClassID != p.ClassID(idx) {
					t.Errorf("size %d: sample %d lost its class id", size, idx)
				}
			}
		}
		if len(seen) != p.NumSamples() {
			t.Errorf("size %d: expected %d distinct samples, got %d", size, p.NumSamples(), len(seen))
		}
	}
}

func TestSeededRunsAreReproducible(t *testing.T) {
	p := flatPool(t, append(append(repeat(1, 20), repeat(2, 9)...), repeat(3, 5)...)...)

	a, _ := BuildBatches(p, 7, models.Pointwise, NewSampler(42))
	b, _ := BuildBatches(p, 7, models.Pointwise, NewSampler(42))
	if len(a) != len(b) {
		t.Fatalf("Expected equal batch counts, got %d and %d", len(a), len(b))
	}
	for i := range a {
		for j := range a[i].Samples {
			if a[i].Samples[j].Feature[0] != b[i].Samples[j].Feature[0] {
				t.Fatalf("Batch %d sample %d differs between seeded runs", i, j)
			}
		}
	}
}

func TestBuildDoesNotMutatePool(t *testing.T) {
	p := flatPool(t, 1, 1, 2, 2, 2)
	batches, _ := BuildBatches(p, 2, models.Pointwise, NewSampler(5))
	batches[0].Samples[0].Feature[0] = -100

	for i := 0; i < p.NumSamples(); i++ {
		if p.Feature(i)[0] != float64(i) {
			t.Errorf("Pool feature %d changed to %v", i, p.Feature(i)[0])
		}
	}
	again, _ := BuildBatches(p, 2, models.Pointwise, NewSampler(5))
	if TotalSamples(again) != p.NumSamples() {
		t.Errorf("Expected a second run to use the whole pool, got %d samples", TotalSamples(again))
	}
}

func TestInvalidInputs(t *testing.T) {
	p := flatPool(t, 1, 2)
	if _, err := BuildBatches(p, 0, models.Pointwise, nil); !errors.Is(err, ErrInvalidBatchSize) {
		t.Errorf("Expected ErrInvalidBatchSize, got %v", err)
	}
	if _, err := BuildBatches(p, 2, models.Spatial, nil); err == nil {
		t.Errorf("Expected error building patches from a pool without stacked arrays")
	}
	if _, err := BuildBatches(p, 2, models.Mode(9), nil); err == nil {
		t.Errorf("Expected error for an unknown mode")
	}
}

func TestShare(t *testing.T) {
	tests := []struct{ batch, n, remaining, want int }{
		{6, 10, 12, 5},
		{6, 2, 12, 1},
		{4, 1, 8, 1}, // 0.5 rounds to even 0, forced to 1
		{4, 3, 8, 2}, // 1.5 rounds to even 2
		{4, 5, 8, 2}, // 2.5 rounds to even 2
		{10, 1, 1000, 1},
	}
	for _, tt := range tests {
		if got := share(tt.batch, tt.n, tt.remaining); got != tt.want {
			t.Errorf("share(%d, %d, %d): expected %d, got %d", tt.batch, tt.n, tt.remaining, tt.want, got)
		}
	}
}

func TestSamplerBounds(t *testing.T) {
	s := NewSampler(9)
	idxs := s.WithoutReplacement(5, 8)
	if len(idxs) != 5 {
		t.Fatalf("Expected k clamped to 5, got %d", len(idxs))
	}
	sort.Ints(idxs)
	for i, v := range idxs {
		if v != i {
			t.Errorf("Expected a permutation of [0,5), got %v", idxs)
			break
		}
	}
	if s.WithoutReplacement(0, 3) != nil || s.WithoutReplacement(3, 0) != nil {
		t.Errorf("Expected nil for empty draws")
	}
}

// spatialPool loads two images of different widths in spatial mode
func spatialPool(t *testing.T, patchSize int) (*cube.Store, *pool.Pool) {
	t.Helper()
	src := cube.NewMemorySource()
	shapes := []struct{ h, w int }{{5, 4}, {3, 7}}
	for img, sh := range shapes {
		c := models.NewCube(sh.h, sh.w, 2)
		for i := range c.Data {
			c.Data[i] = float64((img+1)*1000 + i)
		}
		m := models.NewLabelMap(sh.h, sh.w)
		for x := 0; x < sh.h; x++ {
			for y := 0; y < sh.w; y++ {
				if (x+y)%2 == 0 {
					m.Set(x, y, 101)
				} else if y%3 == 0 {
					m.Set(x, y, 220)
				}
			}
		}
		src.Add([]string{"left", "right"}[img], c, m)
	}

	s, err := cube.NewStore(cube.Params{PatchSize: patchSize, Mode: models.Spatial})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := s.Load([]string{"left", "right"}, src, src); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	p, err := pool.Build(s, labels.ClassMap{101: 1, 220: 2})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return s, p
}

func TestSpatialPatchesMatchSourceImages(t *testing.T) {
	for _, patchSize := range []int{3, 4} {
		s, p := spatialPool(t, patchSize)
		batches, err := BuildBatches(p, 4, models.Spatial, NewSampler(8))
		if err != nil {
			t.Fatalf("patch %d: BuildBatches failed: %v", patchSize, err)
		}
		if TotalSamples(batches) != p.NumSamples() {
			t.Errorf("patch %d: expected %d samples, got %d", patchSize, p.NumSamples(), TotalSamples(batches))
		}

		pad := s.Pad()
		seen := make(map[[3]int]bool)
		for _, b := range batches {
			for _, smp := range b.Samples {
				img := s.Images()[smp.SourceIndex]
				key := [3]int{smp.SourceIndex, smp.Coord.X, smp.Coord.Y}
				if seen[key] {
					t.Errorf("patch %d: cell %v drawn twice", patchSize, key)
				}
				seen[key] = true

				if got := img.RawLabelMap.At(smp.Coord.X-pad, smp.Coord.Y-pad); got != smp.RawLabel {
					t.Errorf("patch %d: expected label %d at source cell, got %d", patchSize, smp.RawLabel, got)
				}
				if smp.ClassID != map[int]int{101: 1, 220: 2}[smp.RawLabel] {
					t.Errorf("patch %d: class id %d does not match label %d", patchSize, smp.ClassID, smp.RawLabel)
				}

				want, err := cube.ExtractPatch(img.PaddedCube, smp.Coord.X, smp.Coord.Y, patchSize)
				if err != nil {
					t.Fatalf("patch %d: re-slicing failed: %v", patchSize, err)
				}
				for i, v := range want.Data {
					if smp.Patch.Data[i] != v {
						t.Fatalf("patch %d: patch differs from re-sliced source at %d", patchSize, i)
					}
				}
				if smp.Center.X != s.RowOffsets()[smp.SourceIndex]+smp.Coord.X || smp.Center.Y != smp.Coord.Y {
					t.Errorf("patch %d: center %v inconsistent with coord %v", patchSize, smp.Center, smp.Coord)
				}
			}
		}
	}
}

func TestSpatialLeavesPoolGridUntouched(t *testing.T) {
	_, p := spatialPool(t, 3)
	before := p.Spatial().Grid.Clone()
	if _, err := BuildBatches(p, 3, models.Spatial, NewSampler(2)); err != nil {
		t.Fatalf("BuildBatches failed: %v", err)
	}
	for i, v := range p.Spatial().Grid.Data {
		if v != before.Data[i] {
			t.Fatalf("Pool grid changed at cell %d", i)
		}
	}
}

func TestSpatialLeftoverOrder(t *testing.T) {
	_, p := spatialPool(t, 3)
	batches, err := BuildBatches(p, p.NumSamples()+1, models.Spatial, NewSampler(1))
	if err != nil {
		t.Fatalf("BuildBatches failed: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("Expected a single leftover batch, got %d", len(batches))
	}
	samples := batches[0].Samples
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		if prev.RawLabel > cur.RawLabel {
			t.Fatalf("Leftover not ordered by label at %d", i)
		}
		if prev.RawLabel == cur.RawLabel &&
			(prev.Center.X > cur.Center.X || prev.Center.X == cur.Center.X && prev.Center.Y >= cur.Center.Y) {
			t.Fatalf("Leftover not row-major within label %d at %d", cur.RawLabel, i)
		}
	}
}

func TestNilSamplerUsesClockSeed(t *testing.T) {
	p := flatPool(t, append(repeat(1, 9), repeat(2, 4)...)...)
	b, err := NewBuilder(4, nil)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	if b.sampler == nil {
		t.Fatalf("Expected a default sampler")
	}
	batches, err := b.Build(p, models.Pointwise)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if TotalSamples(batches) != p.NumSamples() || b.BatchSize() != 4 {
		t.Errorf("Expected %d samples in batches of 4, got %d", p.NumSamples(), TotalSamples(batches))
	}
}
