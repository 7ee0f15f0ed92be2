package envi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"hsibatch/internal/models"
	"hsibatch/pkg/logging"
)

// rawExtensions are tried in order next to <id>.hdr
var rawExtensions = []string{".img", ".raw", ".dat", ""}

const zstdSuffix = ".zst"

// Reader loads <id>.hdr plus its raw file from a directory. It serves both
// as cube source and label source and is safe for concurrent use.
type Reader struct {
	dir     string
	decoder *zstd.Decoder
}

// NewReader creates a reader rooted at dir
func NewReader(dir string) (*Reader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Reader{dir: dir, decoder: decoder}, nil
}

// Close releases the decoder
func (r *Reader) Close() {
	r.decoder.Close()
}

// Cube implements cube.CubeSource
func (r *Reader) Cube(id string) (*models.Cube, error) {
	h, raw, err := r.read(id)
	if err != nil {
		return nil, err
	}
	return Decode(h, raw)
}

// LabelMap implements cube.LabelSource
func (r *Reader) LabelMap(id string) (*models.LabelMap, error) {
	c, err := r.Cube(id)
	if err != nil {
		return nil, err
	}
	return ToLabelMap(c)
}

func (r *Reader) read(id string) (*Header, []byte, error) {
	hdrPath := filepath.Join(r.dir, id+".hdr")
	hdrData, err := os.ReadFile(hdrPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading header: %w", err)
	}
	h, err := ParseHeader(bytes.NewReader(hdrData))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", hdrPath, err)
	}

	for _, ext := range rawExtensions {
		path := filepath.Join(r.dir, id+ext)
		for _, compressed := range []bool{false, true} {
			p := path
			if compressed {
				p += zstdSuffix
			}
			info, err := os.Stat(p)
			if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
				continue
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, nil, fmt.Errorf("error reading raw data: %w", err)
			}
			if compressed {
				if data, err = r.decoder.DecodeAll(data, nil); err != nil {
					return nil, nil, fmt.Errorf("zstd decompress of %s failed: %w", p, err)
				}
			}
			logging.Debugf("read %s: %dx%dx%d %s (%s)", p, h.Lines, h.Samples, h.Bands,
				h.Interleave, humanize.Bytes(uint64(len(data))))
			return h, data, nil
		}
	}
	return nil, nil, fmt.Errorf("no raw data file found for %q in %s", id, r.dir)
}

// WriteOptions controls how Write stores a cube
type WriteOptions struct {
	DataType   int
	Interleave string
	Compress   bool
}

// Write stores c as <dir>/<id>.hdr and <dir>/<id>.img (plus .zst when
// compressed)
func Write(dir, id string, c *models.Cube, opts WriteOptions) error {
	if opts.DataType == 0 {
		opts.DataType = Float32
	}
	if opts.Interleave == "" {
		opts.Interleave = "bsq"
	}
	h, raw, err := Encode(c, opts.DataType, opts.Interleave)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating data directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".hdr"), h.Bytes(), 0644); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	rawPath := filepath.Join(dir, id+".img")
	if opts.Compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		raw = enc.EncodeAll(raw, nil)
		enc.Close()
		rawPath += zstdSuffix
	}
	if err := os.WriteFile(rawPath, raw, 0644); err != nil {
		return fmt.Errorf("error writing raw data: %w", err)
	}
	return nil
}

// WriteLabelMap stores m as a single-band uint16 ENVI image
func WriteLabelMap(dir, id string, m *models.LabelMap, compress bool) error {
	return Write(dir, id, FromLabelMap(m), WriteOptions{DataType: Uint16, Interleave: "bsq", Compress: compress})
}
