// Package cube holds loaded hyperspectral images, their padded copies and
// the stacked arrays used for patch extraction.
package cube

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"hsibatch/internal/models"
	"hsibatch/pkg/labels"
)

// CubeSource returns the H x W x B cube of an image. Load calls it from
// several goroutines at once.
type CubeSource interface {
	Cube(id string) (*models.Cube, error)
}

// LabelSource returns the H x W ground-truth map of an image. Load calls it
// from several goroutines at once.
type LabelSource interface {
	LabelMap(id string) (*models.LabelMap, error)
}

// LabeledPixel is one non-background pixel of a label map
type LabeledPixel struct {
	X, Y  int
	Label int
}

// SourceImage is one loaded cube/label-map pair
type SourceImage struct {
	// ID is the external image identifier
	ID string

	// Index is the position of this image in the load order
	Index int

	RawCube     *models.Cube
	RawLabelMap *models.LabelMap

	// PaddedCube and PaddedLabelMap carry a zero border of width Pad
	PaddedCube     *models.Cube
	PaddedLabelMap *models.LabelMap

	// LabeledCoords lists labeled pixels ascending by label, row-major
	// within a label. Coordinates are in padded space in spatial mode.
	LabeledCoords []LabeledPixel
}

// Params configures a Store
type Params struct {
	// PatchSize is the side of spatial patches; it fixes the padding
	PatchSize int

	// Mode decides whether labeled coordinates live in padded space
	Mode models.Mode

	// NumCores bounds the goroutines reading and padding images; values
	// below 1 mean runtime.NumCPU()
	NumCores int
}

// Store holds the images of the last Load call
type Store struct {
	params Params
	pad    int

	images []*SourceImage

	maxLabelWidth  int
	maxPaddedWidth int
	numBands       int

	appendedCube   *models.Cube
	appendedLabels *models.LabelMap

	// rowOffsets[i] is the first appended row of image i
	rowOffsets []int
}

// NewStore creates an empty store
func NewStore(params Params) (*Store, error) {
	if params.PatchSize < 1 {
		return nil, fmt.Errorf("patch size must be positive, got %d", params.PatchSize)
	}
	return &Store{
		params: params,
		pad:    PadFor(params.PatchSize),
	}, nil
}

// PadFor returns ceil(patchSize/2)
func PadFor(patchSize int) int {
	return (patchSize + 1) / 2
}

// Load reads every id from the sources and replaces the store contents
func (s *Store) Load(ids []string, cubes CubeSource, labelMaps LabelSource) ([]*SourceImage, error) {
	if err := validateIDs(ids); err != nil {
		return nil, err
	}

	images, err := s.readImages(ids, cubes, labelMaps)
	if err != nil {
		return nil, err
	}

	maxLabelWidth, numBands := 0, images[0].RawCube.Bands
	for _, img := range images {
		if img.RawCube.Bands != numBands {
			return nil, &ShapeError{ID: img.ID, Reason: fmt.Sprintf("cube has %d bands, expected %d",
				img.RawCube.Bands, numBands)}
		}
		if img.RawLabelMap.Width > maxLabelWidth {
			maxLabelWidth = img.RawLabelMap.Width
		}
	}

	s.images = images
	s.maxLabelWidth = maxLabelWidth
	s.maxPaddedWidth = maxLabelWidth + 2*s.pad
	s.numBands = numBands
	if err := s.appendImages(); err != nil {
		return nil, err
	}
	return images, nil
}

// readImages reads and pads the images, splitting the ids into contiguous
// ranges, one per core. The first failing id in load order decides the
// returned error.
func (s *Store) readImages(ids []string, cubes CubeSource, labelMaps LabelSource) ([]*SourceImage, error) {
	numImages := len(ids)
	numCores := s.params.NumCores
	if numCores < 1 {
		numCores = runtime.NumCPU()
	}
	if numCores > numImages {
		numCores = numImages
	}

	images := make([]*SourceImage, numImages)
	errs := make([]error, numImages)
	imagesPerCore := (numImages + numCores - 1) / numCores

	var wg sync.WaitGroup
	for c := 0; c < numCores; c++ {
		wg.Add(1)

		go func(coreID int) {
			defer wg.Done()

			start := coreID * imagesPerCore
			end := min((coreID+1)*imagesPerCore, numImages)
			for i := start; i < end; i++ {
				images[i], errs[i] = s.readImage(i, ids[i], cubes, labelMaps)
			}
		}(c)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return images, nil
}

func (s *Store) readImage(index int, id string, cubes CubeSource, labelMaps LabelSource) (*SourceImage, error) {
	c, err := cubes.Cube(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cube %q: %w", id, err)
	}
	m, err := labelMaps.LabelMap(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load label map %q: %w", id, err)
	}
	if err := checkArrays(id, c, m); err != nil {
		return nil, err
	}
	if c.Height != m.Height || c.Width != m.Width {
		return nil, &ShapeError{ID: id, Reason: fmt.Sprintf("cube is %dx%d but label map is %dx%d",
			c.Height, c.Width, m.Height, m.Width)}
	}

	offset := 0
	if s.params.Mode == models.Spatial {
		offset = s.pad
	}
	var coords []LabeledPixel
	for _, g := range labels.Scan(m, offset) {
		for _, xy := range g.Coords {
			coords = append(coords, LabeledPixel{X: xy.X, Y: xy.Y, Label: g.Label})
		}
	}

	return &SourceImage{
		ID:             id,
		Index:          index,
		RawCube:        c,
		RawLabelMap:    m,
		PaddedCube:     c.Pad(s.pad),
		PaddedLabelMap: m.Pad(s.pad),
		LabeledCoords:  coords,
	}, nil
}

// checkArrays rejects arrays whose declared dimensions do not match their
// data
func checkArrays(id string, c *models.Cube, m *models.LabelMap) error {
	switch {
	case c == nil:
		return &ShapeError{ID: id, Reason: "cube source returned no cube"}
	case m == nil:
		return &ShapeError{ID: id, Reason: "label source returned no label map"}
	case c.Height < 1 || c.Width < 1 || c.Bands < 1:
		return &ShapeError{ID: id, Reason: fmt.Sprintf("invalid cube dimensions %dx%dx%d", c.Height, c.Width, c.Bands)}
	case len(c.Data) != c.Height*c.Width*c.Bands:
		return &ShapeError{ID: id, Reason: fmt.Sprintf("cube declares %dx%dx%d but holds %d values",
			c.Height, c.Width, c.Bands, len(c.Data))}
	case len(m.Data) != m.Height*m.Width:
		return &ShapeError{ID: id, Reason: fmt.Sprintf("label map declares %dx%d but holds %d values",
			m.Height, m.Width, len(m.Data))}
	}
	return nil
}

// appendImages right-pads every padded image to maxPaddedWidth and stacks
// them along the height axis
func (s *Store) appendImages() error {
	cubes := make([]*models.Cube, len(s.images))
	maps := make([]*models.LabelMap, len(s.images))
	s.rowOffsets = make([]int, len(s.images))
	row := 0
	for i, img := range s.images {
		cubes[i] = img.PaddedCube.PadRight(s.maxPaddedWidth)
		maps[i] = img.PaddedLabelMap.PadRight(s.maxPaddedWidth)
		s.rowOffsets[i] = row
		row += img.PaddedCube.Height
	}

	var err error
	if s.appendedCube, err = models.VStackCubes(cubes); err != nil {
		return fmt.Errorf("failed to append cubes: %w", err)
	}
	if s.appendedLabels, err = models.VStackLabelMaps(maps); err != nil {
		return fmt.Errorf("failed to append label maps: %w", err)
	}
	return nil
}

func validateIDs(ids []string) error {
	if len(ids) == 0 {
		return ErrMissingSource
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return &InvalidIDError{ID: id, Reason: "blank id"}
		}
		if _, dup := seen[id]; dup {
			return &InvalidIDError{ID: id, Reason: "id listed more than once"}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Images returns the loaded images in load order
func (s *Store) Images() []*SourceImage { return s.images }

// Pad returns the border width added on each spatial side
func (s *Store) Pad() int { return s.pad }

// PatchSize returns the configured patch side
func (s *Store) PatchSize() int { return s.params.PatchSize }

// Mode returns the configured sampling mode
func (s *Store) Mode() models.Mode { return s.params.Mode }

// NumBands returns the spectral band count of the loaded cubes
func (s *Store) NumBands() int { return s.numBands }

// MaxLabelWidth returns the widest unpadded label map
func (s *Store) MaxLabelWidth() int { return s.maxLabelWidth }

// MaxPaddedWidth returns MaxLabelWidth plus both borders
func (s *Store) MaxPaddedWidth() int { return s.maxPaddedWidth }

// AppendedCube returns the stacked padded cubes
func (s *Store) AppendedCube() *models.Cube { return s.appendedCube }

// AppendedLabelMap returns the stacked padded label maps
func (s *Store) AppendedLabelMap() *models.LabelMap { return s.appendedLabels }

// RowOffsets returns the first appended row of each image
func (s *Store) RowOffsets() []int { return s.rowOffsets }

// Locate maps an appended-space row to its source image index and the row
// inside that image's padded arrays
func (s *Store) Locate(row int) (sourceIndex, localRow int, err error) {
	return LocateRow(s.rowOffsets, s.appendedLabels.Height, row)
}

// LocateRow resolves row against a row offset table covering totalRows rows
func LocateRow(rowOffsets []int, totalRows, row int) (sourceIndex, localRow int, err error) {
	if row < 0 || row >= totalRows || len(rowOffsets) == 0 {
		return -1, 0, fmt.Errorf("row %d outside appended range [0, %d)", row, totalRows)
	}
	i := sort.Search(len(rowOffsets), func(i int) bool { return rowOffsets[i] > row }) - 1
	return i, row - rowOffsets[i], nil
}
