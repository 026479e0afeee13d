package euxfel

import (
	"fmt"
	"iter"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-euxfel/internal/index"
)

// File provides train-indexed access to one EuXFEL container file.
//
//	f, err := euxfel.Open("/path/to/RAW-R0450-DA01-S00000.h5")
//	...
//	defer f.Close()
//	for train, err := range f.Trains(nil) {
//	    ...
//	    value := train.Data["SA1_XTD2_XGM/DOOCS/MAIN"].Parameters["pulseEnergy.photonFlux.value"]
//	}
//
// A File must not be used from more than one goroutine at a time: the
// per-source index tables are decoded lazily and cached without locking.
type File struct {
	path    string
	backend Backend
	closed  bool

	sources            []source
	controlDevices     map[string]struct{}
	instrumentChannels map[string]struct{}

	trainIDs []uint64
	trainPos map[uint64]int

	indexTables map[string]*index.Table
	badSources  map[string]bool

	// now stamps each train read; replaced in tests.
	now func() time.Time
}

// Open opens a container file for reading. It fails with ErrNotFound if path
// is not a regular file and ErrInvalidFormat if the file is not an HDF5
// container with the EuXFEL layout.
func Open(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if !IsContainer(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidFormat)
	}
	b, err := openHDF5Backend(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidFormat, err)
	}
	f, err := newFile(b, path)
	if err != nil {
		b.Close()
		return nil, err
	}
	return f, nil
}

// newFile loads the source list and train ID list from an already-open
// backend. It is the seam the in-memory test backend plugs into.
func newFile(b Backend, path string) (*File, error) {
	f := &File{
		path:               path,
		backend:            b,
		controlDevices:     make(map[string]struct{}),
		instrumentChannels: make(map[string]struct{}),
		trainPos:           make(map[uint64]int),
		indexTables:        make(map[string]*index.Table),
		badSources:         make(map[string]bool),
		now:                time.Now,
	}

	srcArr, err := b.ReadWhole(metadataGroup + "/dataSourceId")
	if err != nil {
		return nil, fmt.Errorf("%s: reading source list: %w", path, err)
	}
	ids, err := srcArr.Strings()
	if err != nil {
		return nil, fmt.Errorf("%s: source list: %w", path, err)
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		src := parseSource(id)
		switch src.category {
		case categoryControl:
			f.controlDevices[src.device] = struct{}{}
		case categoryInstrument:
			f.instrumentChannels[src.device] = struct{}{}
		}
		f.sources = append(f.sources, src)
	}

	tidArr, err := b.ReadWhole(indexGroup + "/trainId")
	if err != nil {
		return nil, fmt.Errorf("%s: reading train ID list: %w", path, err)
	}
	tids, err := tidArr.Uint64s()
	if err != nil {
		return nil, fmt.Errorf("%s: train ID list: %w", path, err)
	}
	for _, tid := range tids {
		// Train ID 0 marks an unused slot, not a train.
		if tid == 0 {
			continue
		}
		f.trainPos[tid] = len(f.trainIDs)
		f.trainIDs = append(f.trainIDs, tid)
	}

	return f, nil
}

// Close releases the underlying file. Reads after Close fail with ErrClosed.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.backend.Close()
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Sources returns the raw dataSourceId entries of the file.
func (f *File) Sources() []string {
	out := make([]string, len(f.sources))
	for i, src := range f.sources {
		out[i] = src.id
	}
	return out
}

// ControlDevices returns the sorted addresses of the file's control devices
// (one value per train).
func (f *File) ControlDevices() []string {
	return sortedKeys(f.controlDevices)
}

// InstrumentChannels returns the sorted addresses of the file's instrument
// channels (pulse- or frame-resolved values).
func (f *File) InstrumentChannels() []string {
	return sortedKeys(f.instrumentChannels)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TrainIDs returns the train IDs stored in the file, in file order, with the
// zero sentinel already filtered out.
func (f *File) TrainIDs() []uint64 {
	out := make([]uint64, len(f.trainIDs))
	copy(out, f.trainIDs)
	return out
}

// TrainFromID extracts the train with the given ID. It fails with
// ErrNotFound if the file does not hold that train.
func (f *File) TrainFromID(id uint64, sel Selection) (*Train, error) {
	pos, ok := f.trainPos[id]
	if !ok {
		return nil, fmt.Errorf("train %d in %s: %w", id, f.path, ErrNotFound)
	}
	return f.readTrain(pos, sel)
}

// TrainFromIndex extracts the i-th train of the file. It fails with
// ErrOutOfRange if i is outside [0, len).
func (f *File) TrainFromIndex(i int, sel Selection) (*Train, error) {
	return f.readTrain(i, sel)
}

// Trains returns a lazy, restartable sequence over all trains of the file in
// ascending train ID order. sel filters devices and parameters; nil selects
// everything.
func (f *File) Trains(sel Selection) iter.Seq2[*Train, error] {
	return func(yield func(*Train, error) bool) {
		for pos := range f.trainIDs {
			if !yield(f.readTrain(pos, sel)) {
				return
			}
		}
	}
}

// readTrain builds the record tree for the train at the given position.
func (f *File) readTrain(pos int, sel Selection) (*Train, error) {
	if f.closed {
		return nil, ErrClosed
	}
	if pos < 0 || pos >= len(f.trainIDs) {
		return nil, fmt.Errorf("train position %d of %d in %s: %w", pos, len(f.trainIDs), f.path, ErrOutOfRange)
	}
	tid := f.trainIDs[pos]

	// One timestamp per read keeps the record deterministic under test.
	now := f.now()
	ts := Timestamp{TrainID: tid, Sec: now.Unix(), Frac: int64(now.Nanosecond())}

	data := TrainData{}
	for _, src := range f.sources {
		if f.badSources[src.id] {
			continue
		}
		if !sel.hasDevice(src.device) {
			continue
		}

		tbl, err := f.indexTable(src.h5path)
		if err != nil {
			f.badSources[src.id] = true
			logrus.WithFields(logrus.Fields{
				"file":   f.path,
				"source": src.id,
			}).WithError(err).Warn("dropping source with unreadable index table")
			continue
		}

		dd := data[src.device]
		if dd == nil {
			dd = &DeviceData{Parameters: make(map[string]*Array)}
			data[src.device] = dd
		}

		if first, last, ok := tbl.Range(pos); ok {
			err := f.walkLeaves(src.id, "", func(rel string) error {
				paramPath := joinParamPath(src.sub, rel)
				if !sel.wantsParameter(src.device, paramPath) {
					return nil
				}
				arr, err := f.backend.ReadRange(src.id+"/"+rel, first, last)
				if err != nil {
					return fmt.Errorf("reading %s/%s rows [%d, %d]: %w", src.id, rel, first, last, err)
				}
				if first == last {
					// A single-row range yields a scalar (rank-reduced) value.
					if arr, err = arr.Row(0); err != nil {
						return err
					}
				}
				dd.Parameters[paramPath] = arr
				return nil
			})
			if err != nil {
				return nil, err
			}
		}

		dd.Metadata = Metadata{Source: src.device, Timestamp: ts}
	}

	return &Train{ID: tid, Index: pos, Data: data}, nil
}

// walkLeaves visits every leaf dataset under group, passing its slash path
// relative to group, in stored order.
func (f *File) walkLeaves(group, rel string, visit func(rel string) error) error {
	full := group
	if rel != "" {
		full = group + "/" + rel
	}
	children, err := f.backend.Children(full)
	if err != nil {
		return fmt.Errorf("listing %s: %w", full, err)
	}
	for _, c := range children {
		childRel := c.Name
		if rel != "" {
			childRel = rel + "/" + c.Name
		}
		if c.Kind == KindDataset {
			if err := visit(childRel); err != nil {
				return err
			}
			continue
		}
		if err := f.walkLeaves(group, childRel, visit); err != nil {
			return err
		}
	}
	return nil
}

// indexTable returns the decoded index table for one source, building and
// caching it on first use.
func (f *File) indexTable(h5path string) (*index.Table, error) {
	if tbl, ok := f.indexTables[h5path]; ok {
		return tbl, nil
	}
	base := indexGroup + "/" + h5path
	children, err := f.backend.Children(base)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", base, err)
	}

	columns := map[string][]uint64{}
	for _, c := range children {
		if c.Kind != KindDataset {
			continue
		}
		switch c.Name {
		case "first", "last", "status", "count":
			arr, err := f.backend.ReadWhole(base + "/" + c.Name)
			if err != nil {
				return nil, fmt.Errorf("reading %s/%s: %w", base, c.Name, err)
			}
			col, err := arr.Uint64s()
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", base, c.Name, err)
			}
			columns[c.Name] = col
		}
	}

	tbl, err := index.New(columns["first"], columns["last"], columns["status"], columns["count"])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}
	f.indexTables[h5path] = tbl
	return tbl, nil
}

// DetectorInfo summarizes the detector image data in a file.
type DetectorInfo struct {
	// Dims is the pixel size of one frame (slow, fast).
	Dims [2]int
	// FramesPerTrain is the largest per-train frame count; some trains
	// legitimately carry zero frames.
	FramesPerTrain uint64
	// TotalFrames is the frame count summed over all trains.
	TotalFrames uint64
}

var imageSourceRe = regexp.MustCompile(`^INSTRUMENT/.+/image`)

// DetectorInfo reports statistics about a file holding detector image data.
// It fails with ErrNoImageSource if no instrument source follows the image
// channel convention.
func (f *File) DetectorInfo() (*DetectorInfo, error) {
	if f.closed {
		return nil, ErrClosed
	}
	for _, src := range f.sources {
		if !imageSourceRe.MatchString(src.id) {
			continue
		}
		shape, err := f.backend.Shape(src.id + "/data")
		if err != nil {
			return nil, fmt.Errorf("image data of %s: %w", src.id, err)
		}
		if len(shape) < 2 {
			return nil, fmt.Errorf("image data of %s has rank %d, need at least 2", src.id, len(shape))
		}
		tbl, err := f.indexTable(src.h5path)
		if err != nil {
			return nil, err
		}
		return &DetectorInfo{
			Dims:           [2]int{shape[len(shape)-2], shape[len(shape)-1]},
			FramesPerTrain: tbl.MaxCount(),
			TotalFrames:    tbl.TotalCount(),
		}, nil
	}
	return nil, fmt.Errorf("%s: %w", f.path, ErrNoImageSource)
}
