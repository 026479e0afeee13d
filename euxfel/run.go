package euxfel

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run reads a set of container files covering one experiment run as a single
// logical dataset. Trains split across files (detector modules write one
// file per module) are merged back into one record tree per train.
type Run struct {
	files []*File
	infos []*FileInfo // parallel to files; nil when the name is unrecognized

	trains   []runTrain
	trainPos map[uint64]int

	// openFile reopens a container by path for MapTrains worker replicas.
	openFile func(string) (*File, error)
}

// runTrain is one train of the run with the files holding it, in discovery
// order.
type runTrain struct {
	id    uint64
	files []*File
}

// OpenRun opens the given container files as one run. Files that cannot be
// opened are logged and skipped, so a run stays usable when single files are
// damaged; ErrNoValidFiles is returned only when nothing opens.
func OpenRun(paths ...string) (*Run, error) {
	var files []*File
	for _, p := range paths {
		f, err := Open(p)
		if err != nil {
			logrus.WithField("file", p).WithError(err).Warn("skipping unreadable container file")
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, ErrNoValidFiles
	}
	return NewRun(files...), nil
}

// NewRun composes already-open files into a run. The run takes ownership:
// Close closes them all.
func NewRun(files ...*File) *Run {
	r := &Run{
		files:    files,
		trainPos: make(map[uint64]int),
		openFile: Open,
	}

	byID := make(map[uint64][]*File)
	for _, f := range files {
		info, err := ParseFilename(f.Path())
		if err != nil {
			info = nil
		}
		r.infos = append(r.infos, info)
		for _, tid := range f.trainIDs {
			byID[tid] = append(byID[tid], f)
		}
	}

	ids := make([]uint64, 0, len(byID))
	for tid := range byID {
		ids = append(ids, tid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, tid := range ids {
		r.trainPos[tid] = len(r.trains)
		r.trains = append(r.trains, runTrain{id: tid, files: byID[tid]})
	}
	return r
}

// Close closes every file of the run.
func (r *Run) Close() error {
	var errs []error
	for _, f := range r.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Files returns the run's container files in discovery order.
func (r *Run) Files() []*File {
	out := make([]*File, len(r.files))
	copy(out, r.files)
	return out
}

// TrainIDs returns the sorted union of train IDs across all files.
func (r *Run) TrainIDs() []uint64 {
	out := make([]uint64, len(r.trains))
	for i, rt := range r.trains {
		out[i] = rt.id
	}
	return out
}

// TrainFromID extracts one train, merging the record trees of every file
// holding it. It fails with ErrNotFound if no file holds the train.
func (r *Run) TrainFromID(id uint64, sel Selection) (*Train, error) {
	pos, ok := r.trainPos[id]
	if !ok {
		return nil, fmt.Errorf("train %d in run: %w", id, ErrNotFound)
	}
	return r.mergeTrain(pos, sel)
}

// TrainFromIndex extracts the i-th train of the run's sorted train sequence.
func (r *Run) TrainFromIndex(i int, sel Selection) (*Train, error) {
	if i < 0 || i >= len(r.trains) {
		return nil, fmt.Errorf("train position %d of %d in run: %w", i, len(r.trains), ErrOutOfRange)
	}
	return r.mergeTrain(i, sel)
}

// Trains returns a lazy, restartable sequence over all trains of the run in
// ascending train ID order.
func (r *Run) Trains(sel Selection) iter.Seq2[*Train, error] {
	return func(yield func(*Train, error) bool) {
		for pos := range r.trains {
			if !yield(r.mergeTrain(pos, sel)) {
				return
			}
		}
	}
}

func (r *Run) mergeTrain(pos int, sel Selection) (*Train, error) {
	rt := r.trains[pos]
	data := TrainData{}
	for _, f := range rt.files {
		t, err := f.TrainFromID(rt.id, sel)
		if err != nil {
			return nil, err
		}
		data.merge(t.Data, f.Path())
	}
	return &Train{ID: rt.id, Index: pos, Data: data}, nil
}

// Devices returns the sorted control-device and instrument-channel address
// sets observed across the run's non-detector files. Detector files are
// excluded: their addressing is module-specific and handled by the stacking
// functions instead.
func (r *Run) Devices() (control, instrument []string) {
	ctrl := make(map[string]struct{})
	inst := make(map[string]struct{})
	for i, f := range r.files {
		if info := r.infos[i]; info != nil && info.IsDetector {
			continue
		}
		for dev := range f.controlDevices {
			ctrl[dev] = struct{}{}
		}
		for dev := range f.instrumentChannels {
			inst[dev] = struct{}{}
		}
	}
	return sortedKeys(ctrl), sortedKeys(inst)
}

// DetectorModule is one detector module of a run with its aggregated image
// statistics.
type DetectorModule struct {
	Detector string
	Module   int
	// Info is nil when no file of the module reports image statistics.
	Info *DetectorInfo
}

// RunInfo summarizes a run.
type RunInfo struct {
	TrainCount   int
	FirstTrainID uint64
	LastTrainID  uint64
	// Duration spans first to last train; train IDs tick at 10 Hz.
	Duration time.Duration

	// DetectorName joins the distinct detector names seen in the run.
	// A run should carry a single detector, but if not, don't hide it.
	DetectorName string
	Modules      []DetectorModule

	ControlDevices     []string
	InstrumentChannels []string
}

// Info collects summary statistics for the run. Rendering is left to the
// caller.
func (r *Run) Info() *RunInfo {
	ri := &RunInfo{TrainCount: len(r.trains)}
	if len(r.trains) > 0 {
		ri.FirstTrainID = r.trains[0].id
		ri.LastTrainID = r.trains[len(r.trains)-1].id
		ri.Duration = time.Duration(ri.LastTrainID-ri.FirstTrainID) * 100 * time.Millisecond
	}

	type moduleKey struct {
		detector string
		module   int
	}
	names := make(map[string]struct{})
	modules := make(map[moduleKey]*DetectorInfo)
	for i, f := range r.files {
		info := r.infos[i]
		if info == nil || !info.IsDetector {
			continue
		}
		names[info.DetectorName] = struct{}{}
		key := moduleKey{info.DetectorName, info.ModuleNumber}
		if _, seen := modules[key]; !seen {
			modules[key] = nil
		}
		di, err := f.DetectorInfo()
		if err != nil {
			logrus.WithField("file", f.Path()).WithError(err).Debug("no image statistics for detector file")
			continue
		}
		if agg := modules[key]; agg == nil {
			cp := *di
			modules[key] = &cp
		} else {
			if di.FramesPerTrain > agg.FramesPerTrain {
				agg.FramesPerTrain = di.FramesPerTrain
			}
			agg.TotalFrames += di.TotalFrames
		}
	}
	for key, di := range modules {
		ri.Modules = append(ri.Modules, DetectorModule{Detector: key.detector, Module: key.module, Info: di})
	}
	sort.Slice(ri.Modules, func(i, j int) bool {
		a, b := ri.Modules[i], ri.Modules[j]
		if a.Detector != b.Detector {
			return a.Detector < b.Detector
		}
		return a.Module < b.Module
	})

	nameList := sortedKeys(names)
	for i, n := range nameList {
		if i > 0 {
			ri.DetectorName += ","
		}
		ri.DetectorName += n
	}

	ri.ControlDevices, ri.InstrumentChannels = r.Devices()
	return ri
}

// TrainDevices lists the device addresses contributing to one train.
type TrainDevices struct {
	TrainID            uint64
	ControlDevices     []string
	InstrumentChannels []string
}

// TrainInfo reports which devices recorded data sources for one train.
func (r *Run) TrainInfo(id uint64) (*TrainDevices, error) {
	pos, ok := r.trainPos[id]
	if !ok {
		return nil, fmt.Errorf("train %d in run: %w", id, ErrNotFound)
	}
	ctrl := make(map[string]struct{})
	inst := make(map[string]struct{})
	for _, f := range r.trains[pos].files {
		for dev := range f.controlDevices {
			ctrl[dev] = struct{}{}
		}
		for dev := range f.instrumentChannels {
			inst[dev] = struct{}{}
		}
	}
	return &TrainDevices{
		TrainID:            id,
		ControlDevices:     sortedKeys(ctrl),
		InstrumentChannels: sortedKeys(inst),
	}, nil
}

// MapTrains extracts every train of the run and passes it to fn, fanning the
// work out over the given number of worker goroutines (GOMAXPROCS when
// workers <= 0). Each worker reopens its own copy of the run's files, so the
// run itself is never shared between goroutines. fn is called concurrently
// and must be safe for that; train order is not guaranteed. The first error
// cancels the remaining work.
func (r *Run) MapTrains(ctx context.Context, workers int, sel Selection, fn func(*Train) error) error {
	if len(r.trains) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(r.trains) {
		workers = len(r.trains)
	}

	g, ctx := errgroup.WithContext(ctx)
	positions := make(chan int)
	g.Go(func() error {
		defer close(positions)
		for pos := range r.trains {
			select {
			case positions <- pos:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			replica, err := r.reopen()
			if err != nil {
				return err
			}
			defer replica.Close()
			for pos := range positions {
				t, err := replica.TrainFromIndex(pos, sel)
				if err != nil {
					return err
				}
				if err := fn(t); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// reopen opens a fresh copy of the run's files for one worker.
func (r *Run) reopen() (*Run, error) {
	files := make([]*File, 0, len(r.files))
	for _, f := range r.files {
		nf, err := r.openFile(f.Path())
		if err != nil {
			for _, open := range files {
				open.Close()
			}
			return nil, fmt.Errorf("reopening %s: %w", f.Path(), err)
		}
		files = append(files, nf)
	}
	rep := NewRun(files...)
	rep.openFile = r.openFile
	return rep, nil
}
