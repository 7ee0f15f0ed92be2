package cube

import (
	"errors"
	"fmt"
)

// ErrInputValidation is matched by every load-time validation failure
var ErrInputValidation = errors.New("input validation failed")

// ErrMissingSource is returned when Load receives no ids
var ErrMissingSource = fmt.Errorf("%w: empty id list", ErrInputValidation)

// InvalidIDError reports a blank or repeated image id
type InvalidIDError struct {
	ID     string
	Reason string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid image id %q: %s", e.ID, e.Reason)
}

// Unwrap ties the error to ErrInputValidation
func (e *InvalidIDError) Unwrap() error { return ErrInputValidation }

// ShapeError reports a cube and label map that cannot be paired or stacked
type ShapeError struct {
	ID     string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("image %q: %s", e.ID, e.Reason)
}

// Unwrap ties the error to ErrInputValidation
func (e *ShapeError) Unwrap() error { return ErrInputValidation }

// OutOfBoundsError reports a patch window that leaves the padded cube. It
// means the padding is too small for the patch size.
type OutOfBoundsError struct {
	X, Y      int
	PatchSize int
	Height    int
	Width     int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("patch of size %d centered at (%d, %d) exceeds cube bounds %dx%d",
		e.PatchSize, e.X, e.Y, e.Height, e.Width)
}
