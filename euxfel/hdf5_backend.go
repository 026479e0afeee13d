package euxfel

import (
	"bytes"
	"fmt"
	"os"
	"reflect"

	"github.com/robert-malhotra/go-hdf5/hdf5"
)

// hdf5Backend implements Backend over a go-hdf5 file.
type hdf5Backend struct {
	f *hdf5.File
}

func openHDF5Backend(path string) (*hdf5Backend, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	return &hdf5Backend{f: f}, nil
}

func (b *hdf5Backend) Close() error {
	return b.f.Close()
}

func (b *hdf5Backend) Children(group string) ([]Child, error) {
	g, err := b.openGroup(group)
	if err != nil {
		return nil, err
	}
	members, err := g.Members()
	if err != nil {
		return nil, err
	}
	children := make([]Child, 0, len(members))
	for _, name := range members {
		// Groups and datasets share a namespace; probing as a group
		// first mirrors how the library itself walks files.
		if _, err := g.OpenGroup(name); err == nil {
			children = append(children, Child{Name: name, Kind: KindGroup})
			continue
		}
		if _, err := g.OpenDataset(name); err == nil {
			children = append(children, Child{Name: name, Kind: KindDataset})
			continue
		}
		return nil, fmt.Errorf("cannot open %s/%s as group or dataset", group, name)
	}
	return children, nil
}

func (b *hdf5Backend) openGroup(group string) (*hdf5.Group, error) {
	if group == "" || group == "/" {
		return b.f.Root(), nil
	}
	return b.f.OpenGroup(group)
}

func (b *hdf5Backend) Shape(dataset string) ([]int, error) {
	ds, err := b.f.OpenDataset(dataset)
	if err != nil {
		return nil, err
	}
	return intShape(ds.Shape()), nil
}

func (b *hdf5Backend) ReadWhole(dataset string) (*Array, error) {
	ds, err := b.f.OpenDataset(dataset)
	if err != nil {
		return nil, err
	}
	goType, err := ds.GoType()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dataset, err)
	}
	dest := reflect.New(reflect.SliceOf(goType))
	if err := ds.Read(dest.Interface()); err != nil {
		return nil, fmt.Errorf("%s: %w", dataset, err)
	}
	return NewArray(dest.Elem().Interface(), intShape(ds.Shape())...)
}

func (b *hdf5Backend) ReadRange(dataset string, first, last uint64) (*Array, error) {
	// TODO: switch to hyperslab selection once go-hdf5 supports partial
	// dataset reads; until then read the dataset and slice the rows.
	whole, err := b.ReadWhole(dataset)
	if err != nil {
		return nil, err
	}
	return whole.SliceRows(int(first), int(last))
}

func intShape(dims []uint64) []int {
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	return shape
}

// hdf5Signature is the eight-byte HDF5 file signature.
var hdf5Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// superblockOffsets are the file offsets where the signature may sit.
var superblockOffsets = []int64{0, 512, 1024, 2048}

// IsContainer reports whether path looks like an HDF5 container file, by
// probing for the format signature at the standard superblock offsets.
func IsContainer(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, len(hdf5Signature))
	for _, off := range superblockOffsets {
		if _, err := f.ReadAt(buf, off); err != nil {
			return false
		}
		if bytes.Equal(buf, hdf5Signature) {
			return true
		}
	}
	return false
}
