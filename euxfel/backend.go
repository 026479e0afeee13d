package euxfel

// ChildKind distinguishes the two kinds of objects a container group holds.
type ChildKind int

const (
	KindGroup ChildKind = iota
	KindDataset
)

// Child is one named entry of a container group.
type Child struct {
	Name string
	Kind ChildKind
}

// Backend is the read-only storage capability one container file provides.
// The HDF5 implementation is the only one shipped; tests substitute an
// in-memory one. Paths are slash-separated and relative to the file root.
type Backend interface {
	// Children lists the entries of a group in stored order.
	Children(group string) ([]Child, error)
	// Shape returns a dataset's dimensions without reading it.
	Shape(dataset string) ([]int, error)
	// ReadWhole reads an entire (small) dataset.
	ReadWhole(dataset string) (*Array, error)
	// ReadRange reads rows [first, last] (inclusive) along a dataset's
	// leading axis.
	ReadRange(dataset string, first, last uint64) (*Array, error)
	Close() error
}
