package euxfel

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// StackData stacks one parameter from every device in a train into a single
// array. Devices are ordered by the digit runs embedded in their names
// (natural order), so e.g. "Q1M2" sorts before "Q1M10". The output has shape
// (device count,) + value shape with the device dimension moved to the
// configured axis; slots whose device lacks the parameter stay zero.
//
// When no device carries a non-empty value at path, an empty array is
// returned instead of an error.
func StackData(train TrainData, path string, opts ...StackOption) (*Array, error) {
	o := defaultStackOptions()
	for _, opt := range opts {
		opt(o)
	}

	devices := make([]string, 0, len(train))
	for dev := range train {
		if !o.exclude[dev] {
			devices = append(devices, dev)
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		return naturalLess(devices[i], devices[j])
	})

	ref := referenceValue(train, devices, path)
	if ref == nil {
		return emptyArray(), nil
	}

	combined := newZeros(ref.Dtype(), append([]int{len(devices)}, ref.shape...))
	for i, dev := range devices {
		v, ok := stackableValue(train, dev, path, ref, "StackData")
		if !ok {
			continue
		}
		setRow(combined, i, v)
	}
	return combined.MoveAxis(0, o.axis)
}

// StackDetectorData stacks one parameter from a train's detector modules
// into a fixed-size array. The module index is the second-from-last digit
// run of the device name; modules absent from the train keep the no-data
// placeholder (NaN for floating dtypes, see WithNoDataValue for integers).
// A module index outside [0, modules) is logged and skipped, never fatal.
func StackDetectorData(train TrainData, path string, opts ...StackOption) (*Array, error) {
	o := defaultStackOptions()
	for _, opt := range opts {
		opt(o)
	}

	devices := make([]string, 0, len(train))
	for dev := range train {
		if strings.Contains(dev, o.only) && !o.exclude[dev] {
			devices = append(devices, dev)
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		return naturalLess(devices[i], devices[j])
	})

	ref := referenceValue(train, devices, path)
	if ref == nil {
		return emptyArray(), nil
	}

	combined := newFull(ref.Dtype(), append([]int{o.modules}, ref.shape...), o.noData)
	for _, dev := range devices {
		v, ok := stackableValue(train, dev, path, ref, "StackDetectorData")
		if !ok {
			continue
		}
		runs := digitRuns(dev)
		if len(runs) < 2 {
			logrus.WithFields(logrus.Fields{
				"device": dev,
			}).Warn("StackDetectorData: no module index in device name")
			continue
		}
		idx := runs[len(runs)-2]
		if idx < 0 || idx >= int64(o.modules) {
			logrus.WithFields(logrus.Fields{
				"device":  dev,
				"module":  idx,
				"modules": o.modules,
			}).Warn("StackDetectorData: module index out of range")
			continue
		}
		setRow(combined, int(idx), v)
	}
	return combined.MoveAxis(0, o.axis)
}

// referenceValue picks the dtype/shape reference: the first device, in
// sorted order, with a non-empty value at path.
func referenceValue(train TrainData, devices []string, path string) *Array {
	for _, dev := range devices {
		if v := train[dev].Parameters[path]; v != nil && !v.IsEmpty() {
			return v
		}
	}
	return nil
}

// stackableValue fetches a device's value and checks it against the
// reference. Missing, empty and mismatched values are logged and skipped,
// leaving the device's slot at its placeholder.
func stackableValue(train TrainData, dev, path string, ref *Array, op string) (*Array, bool) {
	v := train[dev].Parameters[path]
	if v == nil {
		logrus.WithFields(logrus.Fields{
			"device":    dev,
			"parameter": path,
		}).Warnf("%s: missing parameter", op)
		return nil, false
	}
	if v.IsEmpty() {
		logrus.WithFields(logrus.Fields{
			"device":    dev,
			"parameter": path,
		}).Debugf("%s: empty value", op)
		return nil, false
	}
	if v.Dtype() != ref.Dtype() || !sameShape(v.shape, ref.shape) {
		logrus.WithFields(logrus.Fields{
			"device":    dev,
			"parameter": path,
			"shape":     v.shape,
			"want":      ref.shape,
		}).Warnf("%s: value does not match the reference shape/dtype", op)
		return nil, false
	}
	return v, true
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func emptyArray() *Array {
	return &Array{shape: []int{0}, data: []float64{}}
}

var digitRunRe = regexp.MustCompile(`\d+`)

// digitRuns extracts every run of digits in s as an integer.
func digitRuns(s string) []int64 {
	matches := digitRunRe.FindAllString(s, -1)
	runs := make([]int64, 0, len(matches))
	for _, m := range matches {
		// ParseInt saturates on overflow, which keeps ordering sane.
		n, _ := strconv.ParseInt(m, 10, 64)
		runs = append(runs, n)
	}
	return runs
}

// naturalLess compares device names by their digit-run tuples, shorter
// tuples first on a shared prefix, falling back to the full name. Names
// without digits therefore sort deterministically ahead, by string order.
func naturalLess(a, b string) bool {
	da, db := digitRuns(a), digitRuns(b)
	for i := 0; i < len(da) && i < len(db); i++ {
		if da[i] != db[i] {
			return da[i] < db[i]
		}
	}
	if len(da) != len(db) {
		return len(da) < len(db)
	}
	return a < b
}
