package cube

import (
	"errors"
	"testing"

	"hsibatch/internal/models"
)

func TestExtractPatchInsidePadding(t *testing.T) {
	raw := fillCube(0, 5, 5, 3)
	padded := raw.Pad(4)

	p, err := ExtractPatch(padded, 4, 4, 7)
	if err != nil {
		t.Fatalf("ExtractPatch failed: %v", err)
	}
	if p.Size != 7 || p.Bands != 3 || len(p.Data) != 7*7*3 {
		t.Fatalf("Expected 7x7x3 patch, got size %d bands %d len %d", p.Size, p.Bands, len(p.Data))
	}
	// The center of the window is the first raw pixel
	for b := 0; b < 3; b++ {
		if got, want := p.At(3, 3, b), raw.Pixel(0, 0)[b]; got != want {
			t.Errorf("Expected center band %d to be %v, got %v", b, want, got)
		}
	}
	if p.At(0, 0, 0) != 0 {
		t.Errorf("Expected zero padding in the window corner, got %v", p.At(0, 0, 0))
	}
}

func TestExtractPatchOutOfBounds(t *testing.T) {
	padded := fillCube(0, 5, 5, 1).Pad(3)

	_, err := ExtractPatch(padded, 0, 0, 7)
	var oob *OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("Expected OutOfBoundsError, got %v", err)
	}
	if oob.PatchSize != 7 {
		t.Errorf("Expected patch size 7 in error, got %d", oob.PatchSize)
	}

	if _, err := ExtractPatch(padded, padded.Height-1, 5, 3); !errors.As(err, &oob) {
		t.Errorf("Expected OutOfBoundsError at the bottom edge, got %v", err)
	}
}

func TestExtractPatchMatchesSlice(t *testing.T) {
	c := fillCube(2, 9, 8, 2)
	for _, size := range []int{1, 2, 3, 4} {
		p, err := ExtractPatch(c, 4, 4, size)
		if err != nil {
			t.Fatalf("ExtractPatch(size %d) failed: %v", size, err)
		}
		xs, ys := 4-size/2, 4-size/2
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				for b := 0; b < 2; b++ {
					if p.At(i, j, b) != c.Pixel(xs+i, ys+j)[b] {
						t.Errorf("size %d: mismatch at (%d,%d,%d)", size, i, j, b)
					}
				}
			}
		}
	}
}

func TestExtractPatches(t *testing.T) {
	c := fillCube(0, 6, 6, 1).Pad(2)
	patches, err := ExtractPatches(c, []int{2, 5}, []int{2, 7}, 3)
	if err != nil {
		t.Fatalf("ExtractPatches failed: %v", err)
	}
	if len(patches) != 2 {
		t.Fatalf("Expected 2 patches, got %d", len(patches))
	}
	if _, err := ExtractPatches(c, []int{1}, nil, 3); err == nil {
		t.Errorf("Expected length mismatch error")
	}
	if _, err := ExtractPatch(models.NewCube(3, 3, 1), 1, 1, 0); err == nil {
		t.Errorf("Expected error for zero patch size")
	}
}
