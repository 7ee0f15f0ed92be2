package cube

import (
	"fmt"

	"hsibatch/internal/models"
)

// Patch is a patchSize x patchSize x bands neighborhood stored row-major:
// index = (i*Size + j)*Bands + band
type Patch struct {
	Data  []float64
	Size  int
	Bands int
}

// At returns the value at window row i, column j and band b
func (p *Patch) At(i, j, b int) float64 {
	return p.Data[(i*p.Size+j)*p.Bands+b]
}

// ExtractPatch reads the window [x-size/2, x-size/2+size) x
// [y-size/2, y-size/2+size) out of c
func ExtractPatch(c *models.Cube, x, y, size int) (Patch, error) {
	if size < 1 {
		return Patch{}, fmt.Errorf("patch size must be positive, got %d", size)
	}
	xs, ys := x-size/2, y-size/2
	if xs < 0 || ys < 0 || xs+size > c.Height || ys+size > c.Width {
		return Patch{}, &OutOfBoundsError{X: x, Y: y, PatchSize: size, Height: c.Height, Width: c.Width}
	}

	rowLen := size * c.Bands
	data := make([]float64, size*rowLen)
	for i := 0; i < size; i++ {
		start := c.Index(xs+i, ys)
		copy(data[i*rowLen:(i+1)*rowLen], c.Data[start:start+rowLen])
	}
	return Patch{Data: data, Size: size, Bands: c.Bands}, nil
}

// ExtractPatches returns one patch per (xs[i], ys[i]) center
func ExtractPatches(c *models.Cube, xs, ys []int, size int) ([]Patch, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("coordinate length mismatch: %d x values, %d y values", len(xs), len(ys))
	}
	patches := make([]Patch, len(xs))
	for i := range xs {
		p, err := ExtractPatch(c, xs[i], ys[i], size)
		if err != nil {
			return nil, err
		}
		patches[i] = p
	}
	return patches, nil
}
