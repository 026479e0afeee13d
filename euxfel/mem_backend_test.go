package euxfel

import (
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"
)

// memBackend is an in-memory Backend modeling the EuXFEL file layout, so
// extraction can be tested without real HDF5 files. Groups exist implicitly
// as dataset path prefixes.
type memBackend struct {
	datasets map[string]*Array
	closed   bool
}

func (b *memBackend) Children(group string) ([]Child, error) {
	if b.closed {
		return nil, ErrClosed
	}
	prefix := ""
	if group != "" && group != "/" {
		prefix = strings.TrimSuffix(group, "/") + "/"
	}
	kinds := make(map[string]ChildKind)
	found := prefix == ""
	for p := range b.datasets {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		found = true
		name, _, nested := strings.Cut(p[len(prefix):], "/")
		if nested {
			kinds[name] = KindGroup
		} else {
			kinds[name] = KindDataset
		}
	}
	if !found {
		return nil, fmt.Errorf("group %s: %w", group, ErrNotFound)
	}
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	children := make([]Child, len(names))
	for i, name := range names {
		children[i] = Child{Name: name, Kind: kinds[name]}
	}
	return children, nil
}

func (b *memBackend) Shape(dataset string) ([]int, error) {
	a, ok := b.datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", dataset, ErrNotFound)
	}
	return a.Shape(), nil
}

func (b *memBackend) ReadWhole(dataset string) (*Array, error) {
	if b.closed {
		return nil, ErrClosed
	}
	a, ok := b.datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", dataset, ErrNotFound)
	}
	return a, nil
}

func (b *memBackend) ReadRange(dataset string, first, last uint64) (*Array, error) {
	a, err := b.ReadWhole(dataset)
	if err != nil {
		return nil, err
	}
	return a.SliceRows(int(first), int(last))
}

func (b *memBackend) Close() error {
	b.closed = true
	return nil
}

func mustArray(t *testing.T, data interface{}, shape ...int) *Array {
	t.Helper()
	a, err := NewArray(data, shape...)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	return a
}

// fixedClock makes record timestamps deterministic in tests.
func fixedClock() time.Time {
	return time.Unix(1234567890, 42)
}

const (
	xgmSource    = "CONTROL/SPB_XTD9_XGM/DOOCS/MAIN"
	xgmDevice    = "SPB_XTD9_XGM/DOOCS/MAIN"
	xgmParam     = "pulseEnergy.photonFlux.value"
	agipdChannel = "SPB_DET_AGIPD1M-1/DET/7CH0:xtdf"
	agipdSource  = "INSTRUMENT/" + agipdChannel + "/image"
)

// newXGMFile builds a control-device container: one scalar value per train,
// current (first/count) index encoding, trailing sentinel train IDs.
func newXGMFile(t *testing.T, path string, trains []uint64, values []float64) *File {
	t.Helper()
	n := len(trains)
	first := make([]uint64, n)
	count := make([]uint64, n)
	for i := range trains {
		first[i] = uint64(i)
		count[i] = 1
	}
	b := &memBackend{datasets: map[string]*Array{
		"METADATA/dataSourceId": mustArray(t, append([]string{xgmSource}, ""), 2),
		"INDEX/trainId":         mustArray(t, append(append([]uint64{}, trains...), 0, 0), n+2),
		"INDEX/" + xgmDevice + "/first": mustArray(t, first, n),
		"INDEX/" + xgmDevice + "/count": mustArray(t, count, n),
		xgmSource + "/pulseEnergy/photonFlux/value": mustArray(t, values, n),
	}}
	f, err := newFile(b, path)
	if err != nil {
		t.Fatalf("newFile(%s): %v", path, err)
	}
	f.now = fixedClock
	return f
}

// newAGIPDFile builds a detector-module container: frame-resolved image data
// with the legacy (status/first/last) index encoding. Trains hold two frames
// each except the last, which holds none.
func newAGIPDFile(t *testing.T, path string, trains []uint64) *File {
	t.Helper()
	n := len(trains)
	first := make([]uint64, n)
	last := make([]uint64, n)
	status := make([]uint64, n)
	frames := 0
	for i := 0; i < n-1; i++ {
		first[i] = uint64(2 * i)
		last[i] = uint64(2*i + 1)
		status[i] = 1
		frames += 2
	}
	// Last train recorded nothing; its first/last rows are stale.
	if n > 0 {
		first[n-1] = uint64(frames)
		last[n-1] = uint64(frames)
	}

	pixels := make([]float32, frames*2*2)
	for i := range pixels {
		pixels[i] = float32(i)
	}
	pulseIDs := make([]uint64, frames)
	for i := range pulseIDs {
		pulseIDs[i] = uint64(i % 2)
	}

	b := &memBackend{datasets: map[string]*Array{
		"METADATA/dataSourceId": mustArray(t, []string{agipdSource}, 1),
		"INDEX/trainId":         mustArray(t, trains, n),
		"INDEX/" + agipdChannel + "/image/first":  mustArray(t, first, n),
		"INDEX/" + agipdChannel + "/image/last":   mustArray(t, last, n),
		"INDEX/" + agipdChannel + "/image/status": mustArray(t, status, n),
		agipdSource + "/data":    mustArray(t, pixels, frames, 2, 2),
		agipdSource + "/pulseId": mustArray(t, pulseIDs, frames),
	}}
	f, err := newFile(b, path)
	if err != nil {
		t.Fatalf("newFile(%s): %v", path, err)
	}
	f.now = fixedClock
	return f
}
