// Package dataset ties loading, pooling and batching together behind one
// stateful manager. A manager holds the images of its last Load call.
package dataset

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"hsibatch/internal/models"
	"hsibatch/pkg/batch"
	"hsibatch/pkg/cube"
	"hsibatch/pkg/labels"
	"hsibatch/pkg/logging"
	"hsibatch/pkg/pool"
)

// Params holds the batching configuration
type Params struct {
	// PatchSize is the side of spatial patches. It also fixes the padding
	// added around every cube.
	PatchSize int

	// BatchSize is the number of samples in every full batch
	BatchSize int

	// Mode selects pointwise vectors or spatial patches
	Mode models.Mode

	// ClassMap resolves raw labels to class ids
	ClassMap labels.ClassMap

	// Sampler draws samples; nil means a clock-seeded sampler
	Sampler batch.Sampler

	// NumCores bounds parallel image reading; 0 uses every CPU
	NumCores int
}

// ImageInfo summarizes one loaded image
type ImageInfo struct {
	ID       string
	Height   int
	Width    int
	Labeled  int
	RowStart int
}

// Summary describes the loaded data
type Summary struct {
	NumImages   int
	NumSamples  int
	NumClasses  int
	NumBands    int
	ClassCounts map[int]int
	Images      []ImageInfo
}

// Manager loads images and creates batches from them
type Manager struct {
	params  *Params
	builder *batch.Builder

	store *cube.Store
	pool  *pool.Pool
}

// NewManager validates params and creates a manager with nothing loaded
func NewManager(params *Params) (*Manager, error) {
	if params == nil {
		return nil, fmt.Errorf("params are required")
	}
	if len(params.ClassMap) == 0 {
		return nil, fmt.Errorf("a label to class id mapping is required")
	}
	builder, err := batch.NewBuilder(params.BatchSize, params.Sampler)
	if err != nil {
		return nil, err
	}
	m := &Manager{params: params, builder: builder}
	if _, err := cube.NewStore(m.storeParams()); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads the images and rebuilds the pool. Any previously loaded data
// is discarded, also when loading fails.
func (m *Manager) Load(ids []string, cubes cube.CubeSource, labelMaps cube.LabelSource) error {
	m.store, m.pool = nil, nil

	start := time.Now()
	logging.Infof("Step 1: Loading %d images...", len(ids))
	store, err := cube.NewStore(m.storeParams())
	if err != nil {
		return err
	}
	if _, err := store.Load(ids, cubes, labelMaps); err != nil {
		return fmt.Errorf("failed to load images: %w", err)
	}
	appended := store.AppendedCube()
	logging.Infof("Loaded %d images, appended cube %dx%dx%d (%s)", len(ids),
		appended.Height, appended.Width, appended.Bands, humanize.Bytes(uint64(len(appended.Data)*8)))

	logging.Infof("Step 2: Building pixel pool...")
	p, err := pool.Build(store, m.params.ClassMap)
	if err != nil {
		return fmt.Errorf("failed to build pixel pool: %w", err)
	}
	logging.Infof("Pool has %s samples in %d classes (%v)",
		humanize.Comma(int64(p.NumSamples())), p.NumClasses(), time.Since(start))

	m.store, m.pool = store, p
	return nil
}

func (m *Manager) storeParams() cube.Params {
	return cube.Params{PatchSize: m.params.PatchSize, Mode: m.params.Mode, NumCores: m.params.NumCores}
}

// CreateBatches draws a fresh sequence of batches from the loaded pool
func (m *Manager) CreateBatches() ([]batch.Batch, error) {
	if m.pool == nil {
		return nil, fmt.Errorf("no images loaded; call Load first")
	}
	logging.Infof("Step 3: Creating %s batches of %d...", m.params.Mode, m.params.BatchSize)
	batches, err := m.builder.Build(m.pool, m.params.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create batches: %w", err)
	}
	if len(batches) > 0 {
		last := batches[len(batches)-1]
		logging.Infof("Created %d batches, last batch has %d samples", len(batches), last.Len())
	}
	for i, c := range batch.Summarize(batches) {
		logging.Debugf("batch %d: classes %v counts %v entropy %.3f", i, c.Classes, c.Counts, c.Entropy)
	}
	return batches, nil
}

// Pool returns the loaded pool, or nil
func (m *Manager) Pool() *pool.Pool { return m.pool }

// Store returns the loaded store, or nil
func (m *Manager) Store() *cube.Store { return m.store }

// Summary reports what is loaded
func (m *Manager) Summary() (Summary, error) {
	if m.pool == nil {
		return Summary{}, fmt.Errorf("no images loaded; call Load first")
	}
	s := Summary{
		NumImages:   len(m.store.Images()),
		NumSamples:  m.pool.NumSamples(),
		NumClasses:  m.pool.NumClasses(),
		NumBands:    m.pool.NumBands(),
		ClassCounts: m.pool.ClassCounts(),
	}
	offsets := m.store.RowOffsets()
	for i, img := range m.store.Images() {
		s.Images = append(s.Images, ImageInfo{
			ID:       img.ID,
			Height:   img.RawCube.Height,
			Width:    img.RawCube.Width,
			Labeled:  len(img.LabeledCoords),
			RowStart: offsets[i],
		})
	}
	return s, nil
}
