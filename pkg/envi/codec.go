package envi

import (
	"fmt"
	"math"

	"hsibatch/internal/models"
)

// Decode converts raw ENVI data into a cube
func Decode(h *Header, raw []byte) (*models.Cube, error) {
	if len(raw) < h.HeaderOffset+h.DataSize() {
		return nil, fmt.Errorf("raw data has %d bytes, header describes %d", len(raw)-h.HeaderOffset, h.DataSize())
	}
	raw = raw[h.HeaderOffset:]
	order := h.byteOrder()
	size := bytesPerValue(h.DataType)

	read := func(i int) float64 {
		b := raw[i*size : (i+1)*size]
		switch h.DataType {
		case Uint8:
			return float64(b[0])
		case Int16:
			return float64(int16(order.Uint16(b)))
		case Uint16:
			return float64(order.Uint16(b))
		case Int32:
			return float64(int32(order.Uint32(b)))
		case Uint32:
			return float64(order.Uint32(b))
		case Float32:
			return float64(math.Float32frombits(order.Uint32(b)))
		case Int64:
			return float64(int64(order.Uint64(b)))
		case Uint64:
			return float64(order.Uint64(b))
		default:
			return math.Float64frombits(order.Uint64(b))
		}
	}

	c := models.NewCube(h.Lines, h.Samples, h.Bands)
	for x := 0; x < h.Lines; x++ {
		for y := 0; y < h.Samples; y++ {
			px := c.Pixel(x, y)
			for band := range px {
				px[band] = read(h.offset(x, y, band))
			}
		}
	}
	return c, nil
}

// Encode converts a cube into raw ENVI data described by the returned header
func Encode(c *models.Cube, dataType int, interleave string) (*Header, []byte, error) {
	h := &Header{
		Samples:    c.Width,
		Lines:      c.Height,
		Bands:      c.Bands,
		DataType:   dataType,
		Interleave: interleave,
	}
	if err := h.validate(); err != nil {
		return nil, nil, err
	}
	order := h.byteOrder()
	size := bytesPerValue(dataType)
	raw := make([]byte, h.DataSize())

	for x := 0; x < c.Height; x++ {
		for y := 0; y < c.Width; y++ {
			for band, v := range c.Pixel(x, y) {
				b := raw[h.offset(x, y, band)*size:]
				switch dataType {
				case Uint8:
					b[0] = uint8(v)
				case Int16:
					order.PutUint16(b, uint16(int16(v)))
				case Uint16:
					order.PutUint16(b, uint16(v))
				case Int32:
					order.PutUint32(b, uint32(int32(v)))
				case Uint32:
					order.PutUint32(b, uint32(v))
				case Float32:
					order.PutUint32(b, math.Float32bits(float32(v)))
				case Int64:
					order.PutUint64(b, uint64(int64(v)))
				case Uint64:
					order.PutUint64(b, uint64(v))
				default:
					order.PutUint64(b, math.Float64bits(v))
				}
			}
		}
	}
	return h, raw, nil
}

// ToLabelMap converts a single-band cube into a label map
func ToLabelMap(c *models.Cube) (*models.LabelMap, error) {
	if c.Bands != 1 {
		return nil, fmt.Errorf("label map must have 1 band, got %d", c.Bands)
	}
	m := models.NewLabelMap(c.Height, c.Width)
	for i, v := range c.Data {
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("label value %v at index %d is not an integer", v, i)
		}
		m.Data[i] = int(v)
	}
	return m, nil
}

// FromLabelMap wraps a label map as a single-band cube
func FromLabelMap(m *models.LabelMap) *models.Cube {
	c := models.NewCube(m.Height, m.Width, 1)
	for i, v := range m.Data {
		c.Data[i] = float64(v)
	}
	return c
}
