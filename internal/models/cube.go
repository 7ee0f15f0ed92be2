package models

import (
	"fmt"
	"strings"
)

// Cube represents a hyperspectral image cube
type Cube struct {
	// Data is the cube data as a 1D array in row-major order:
	// index = (x*Width + y)*Bands + band
	Data []float64

	// Height is the number of rows (x axis)
	Height int

	// Width is the number of columns (y axis)
	Width int

	// Bands is the number of spectral bands
	Bands int
}

// NewCube allocates a zero-filled cube
func NewCube(height, width, bands int) *Cube {
	return &Cube{
		Data:   make([]float64, height*width*bands),
		Height: height,
		Width:  width,
		Bands:  bands,
	}
}

// Index returns the flat offset of the first band of pixel (x, y)
func (c *Cube) Index(x, y int) int {
	return (x*c.Width + y) * c.Bands
}

// Pixel returns the spectral vector at (x, y). The returned slice aliases
// the cube data.
func (c *Cube) Pixel(x, y int) []float64 {
	i := c.Index(x, y)
	return c.Data[i : i+c.Bands]
}

// Pad returns a copy of the cube with a zero border of width pad on both
// spatial axes. The spectral axis is untouched.
func (c *Cube) Pad(pad int) *Cube {
	out := NewCube(c.Height+2*pad, c.Width+2*pad, c.Bands)
	for x := 0; x < c.Height; x++ {
		src := c.Data[c.Index(x, 0) : c.Index(x, 0)+c.Width*c.Bands]
		copy(out.Data[out.Index(x+pad, pad):], src)
	}
	return out
}

// PadRight returns a copy of the cube widened to width with zeros on the
// right. If the cube is already that wide it is returned as is.
func (c *Cube) PadRight(width int) *Cube {
	if c.Width >= width {
		return c
	}
	out := NewCube(c.Height, width, c.Bands)
	for x := 0; x < c.Height; x++ {
		copy(out.Data[out.Index(x, 0):], c.Data[c.Index(x, 0):c.Index(x, 0)+c.Width*c.Bands])
	}
	return out
}

// VStackCubes concatenates cubes along the height axis. All cubes must
// share width and band count.
func VStackCubes(cubes []*Cube) (*Cube, error) {
	if len(cubes) == 0 {
		return nil, fmt.Errorf("no cubes to stack")
	}
	width, bands := cubes[0].Width, cubes[0].Bands
	height := 0
	for i, c := range cubes {
		if c.Width != width || c.Bands != bands {
			return nil, fmt.Errorf("cube %d has shape %dx%d, expected width %d and %d bands",
				i, c.Width, c.Bands, width, bands)
		}
		height += c.Height
	}
	data := make([]float64, 0, height*width*bands)
	for _, c := range cubes {
		data = append(data, c.Data...)
	}
	return &Cube{Data: data, Height: height, Width: width, Bands: bands}, nil
}

// LabelMap represents a pixel-wise ground-truth map. Zero is background.
type LabelMap struct {
	// Data holds labels in row-major order: index = x*Width + y
	Data []int

	Height int
	Width  int
}

// NewLabelMap allocates an all-background label map
func NewLabelMap(height, width int) *LabelMap {
	return &LabelMap{
		Data:   make([]int, height*width),
		Height: height,
		Width:  width,
	}
}

// At returns the label at (x, y)
func (m *LabelMap) At(x, y int) int {
	return m.Data[x*m.Width+y]
}

// Set stores a label at (x, y)
func (m *LabelMap) Set(x, y, label int) {
	m.Data[x*m.Width+y] = label
}

// Clone returns a deep copy
func (m *LabelMap) Clone() *LabelMap {
	data := make([]int, len(m.Data))
	copy(data, m.Data)
	return &LabelMap{Data: data, Height: m.Height, Width: m.Width}
}

// Pad returns a copy with a symmetric zero border of width pad
func (m *LabelMap) Pad(pad int) *LabelMap {
	out := NewLabelMap(m.Height+2*pad, m.Width+2*pad)
	for x := 0; x < m.Height; x++ {
		copy(out.Data[(x+pad)*out.Width+pad:], m.Data[x*m.Width:(x+1)*m.Width])
	}
	return out
}

// PadRight returns a copy widened to width with zeros on the right
func (m *LabelMap) PadRight(width int) *LabelMap {
	if m.Width >= width {
		return m
	}
	out := NewLabelMap(m.Height, width)
	for x := 0; x < m.Height; x++ {
		copy(out.Data[x*width:], m.Data[x*m.Width:(x+1)*m.Width])
	}
	return out
}

// VStackLabelMaps concatenates label maps along the height axis
func VStackLabelMaps(maps []*LabelMap) (*LabelMap, error) {
	if len(maps) == 0 {
		return nil, fmt.Errorf("no label maps to stack")
	}
	width := maps[0].Width
	height := 0
	for i, m := range maps {
		if m.Width != width {
			return nil, fmt.Errorf("label map %d has width %d, expected %d", i, m.Width, width)
		}
		height += m.Height
	}
	data := make([]int, 0, height*width)
	for _, m := range maps {
		data = append(data, m.Data...)
	}
	return &LabelMap{Data: data, Height: height, Width: width}, nil
}

// Coord is a spatial coordinate. X indexes rows and Y indexes columns.
type Coord struct {
	X, Y int
}

// Mode selects how labeled pixels are turned into samples
type Mode int

const (
	// Pointwise samples are single spectral vectors
	Pointwise Mode = iota
	// Spatial samples are patchSize x patchSize x bands neighborhoods
	Spatial
)

// String returns the canonical mode name
func (m Mode) String() string {
	switch m {
	case Pointwise:
		return "pointwise"
	case Spatial:
		return "spatial"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "pointwise"/"2D" and "spatial"/"3D"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pointwise", "2d", "":
		return Pointwise, nil
	case "spatial", "3d", "patch":
		return Spatial, nil
	default:
		return Pointwise, fmt.Errorf("invalid mode: %q (must be pointwise/2D or spatial/3D)", s)
	}
}
