package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"sort"

	"hsibatch/internal/models"
)

// Viewer renders single bands of a hyperspectral cube and its label map as
// grayscale images
type Viewer struct {
	// cube holds the spectral data
	cube *models.Cube

	// labelMap is optional
	labelMap *models.LabelMap
}

// NewViewer creates a viewer. labelMap may be nil.
func NewViewer(cube *models.Cube, labelMap *models.LabelMap) *Viewer {
	return &Viewer{
		cube:     cube,
		labelMap: labelMap,
	}
}

// ExtractBand renders one band, stretched to the band's min/max range
func (v *Viewer) ExtractBand(band int) (image.Image, error) {
	if band < 0 || band >= v.cube.Bands {
		return nil, fmt.Errorf("band %d outside [0, %d)", band, v.cube.Bands)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for x := 0; x < v.cube.Height; x++ {
		for y := 0; y < v.cube.Width; y++ {
			val := v.cube.Pixel(x, y)[band]
			lo = math.Min(lo, val)
			hi = math.Max(hi, val)
		}
	}
	scale := 0.0
	if hi > lo {
		scale = 1 / (hi - lo)
	}

	// image x runs along columns, image y along rows
	img := image.NewGray16(image.Rect(0, 0, v.cube.Width, v.cube.Height))
	for x := 0; x < v.cube.Height; x++ {
		for y := 0; y < v.cube.Width; y++ {
			norm := (v.cube.Pixel(x, y)[band] - lo) * scale
			value := uint16(math.Max(0, math.Min(65535, norm*65535)))
			img.SetGray16(y, x, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// ExtractLabelMap renders the label map with distinct labels spread evenly
// over the gray range and background black
func (v *Viewer) ExtractLabelMap() (image.Image, error) {
	if v.labelMap == nil {
		return nil, fmt.Errorf("viewer has no label map")
	}

	levels := make(map[int]int)
	for _, l := range v.labelMap.Data {
		if l != 0 {
			levels[l] = 0
		}
	}
	sorted := make([]int, 0, len(levels))
	for l := range levels {
		sorted = append(sorted, l)
	}
	sort.Ints(sorted)
	for i, l := range sorted {
		levels[l] = i + 1
	}

	img := image.NewGray(image.Rect(0, 0, v.labelMap.Width, v.labelMap.Height))
	for x := 0; x < v.labelMap.Height; x++ {
		for y := 0; y < v.labelMap.Width; y++ {
			l := v.labelMap.At(x, y)
			if l == 0 {
				continue
			}
			img.SetGray(y, x, color.Gray{Y: uint8(levels[l] * 255 / len(sorted))})
		}
	}
	return img, nil
}

// SaveImage saves an image as JPEG
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveBandSequence renders every step-th band into outputDir, plus the
// label map when present
func (v *Viewer) SaveBandSequence(outputDir string, step int) error {
	if step < 1 {
		return fmt.Errorf("step must be positive, got %d", step)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for band := 0; band < v.cube.Bands; band += step {
		img, err := v.ExtractBand(band)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("band_%03d.jpg", band))
		if err := v.SaveImage(img, filename); err != nil {
			return err
		}
	}

	if v.labelMap != nil {
		img, err := v.ExtractLabelMap()
		if err != nil {
			return err
		}
		return v.SaveImage(img, filepath.Join(outputDir, "labels.jpg"))
	}
	return nil
}
