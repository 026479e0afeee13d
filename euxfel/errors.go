// Package euxfel provides train-indexed access to HDF5 data files generated
// at the European XFEL facility.
package euxfel

import "errors"

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidFormat = errors.New("not a valid EuXFEL container file")
	ErrOutOfRange    = errors.New("position out of range")
	ErrClosed        = errors.New("file is closed")
	ErrNoImageSource = errors.New("no instrument image source in file")
	ErrNoValidFiles  = errors.New("no valid container files")
)
