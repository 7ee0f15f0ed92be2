// Package tensorize converts batches into gomlx tensors without reshaping:
// pointwise batches become [n, bands], patch batches [n, size, size, bands]
// and labels [n].
package tensorize

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"

	"hsibatch/pkg/batch"
)

// Batch converts the sample data of b, choosing the patch layout when the
// batch holds patches
func Batch(b batch.Batch, dtype dtypes.DType) (*tensors.Tensor, error) {
	if b.Len() == 0 {
		return nil, fmt.Errorf("cannot convert an empty batch")
	}
	if b.Samples[0].Patch != nil {
		return Patches(b, dtype)
	}
	return Features(b, dtype)
}

// Features converts a pointwise batch into a [n, bands] tensor
func Features(b batch.Batch, dtype dtypes.DType) (*tensors.Tensor, error) {
	m := b.Features()
	if m == nil {
		return nil, fmt.Errorf("batch has no feature vectors")
	}
	rows, cols := m.Dims()
	return fromFloats(m.RawMatrix().Data, dtype, rows, cols)
}

// Patches converts a patch batch into a [n, size, size, bands] tensor
func Patches(b batch.Batch, dtype dtypes.DType) (*tensors.Tensor, error) {
	if b.Len() == 0 || b.Samples[0].Patch == nil {
		return nil, fmt.Errorf("batch has no patches")
	}
	size, bands := b.Samples[0].Patch.Size, b.Samples[0].Patch.Bands
	data := make([]float64, 0, b.Len()*size*size*bands)
	for i, s := range b.Samples {
		if s.Patch == nil || s.Patch.Size != size || s.Patch.Bands != bands {
			return nil, fmt.Errorf("sample %d has an inconsistent patch shape", i)
		}
		data = append(data, s.Patch.Data...)
	}
	return fromFloats(data, dtype, b.Len(), size, size, bands)
}

// Labels converts the class ids of b into a [n] tensor
func Labels(b batch.Batch, dtype dtypes.DType) (*tensors.Tensor, error) {
	if b.Len() == 0 {
		return nil, fmt.Errorf("cannot convert an empty batch")
	}
	ids := b.ClassIDs()
	data := make([]float64, len(ids))
	for i, id := range ids {
		data[i] = float64(id)
	}
	return fromFloats(data, dtype, len(ids))
}

// All converts every batch, returning sample tensors and label tensors in
// batch order
func All(batches []batch.Batch, dataType, labelType dtypes.DType) (inputs, labels []*tensors.Tensor, err error) {
	inputs = make([]*tensors.Tensor, len(batches))
	labels = make([]*tensors.Tensor, len(batches))
	for i, b := range batches {
		if inputs[i], err = Batch(b, dataType); err != nil {
			return nil, nil, fmt.Errorf("batch %d: %w", i, err)
		}
		if labels[i], err = Labels(b, labelType); err != nil {
			return nil, nil, fmt.Errorf("batch %d: %w", i, err)
		}
	}
	return inputs, labels, nil
}

func fromFloats(data []float64, dtype dtypes.DType, dims ...int) (*tensors.Tensor, error) {
	switch dtype {
	case dtypes.Float32:
		return tensors.FromFlatDataAndDimensions(convert[float32](data), dims...), nil
	case dtypes.Float64:
		return tensors.FromFlatDataAndDimensions(convert[float64](data), dims...), nil
	case dtypes.Int32:
		return tensors.FromFlatDataAndDimensions(convert[int32](data), dims...), nil
	case dtypes.Int64:
		return tensors.FromFlatDataAndDimensions(convert[int64](data), dims...), nil
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %s", dtype)
	}
}

func convert[T float32 | float64 | int32 | int64](data []float64) []T {
	out := make([]T, len(data))
	for i, v := range data {
		out[i] = T(v)
	}
	return out
}
