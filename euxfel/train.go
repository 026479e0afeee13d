package euxfel

import (
	"github.com/sirupsen/logrus"
)

// Timestamp records when a train's data was extracted. Sec and Frac are the
// capture wall-clock time split into whole seconds and nanoseconds; TrainID
// repeats the train the record belongs to.
type Timestamp struct {
	TrainID uint64
	Sec     int64
	Frac    int64
}

// Metadata is the reserved per-device entry of a record tree.
type Metadata struct {
	Source    string
	Timestamp Timestamp
}

// DeviceData holds one device's contribution to a train: its parameter
// values keyed by dot-joined parameter path, plus metadata. A device that
// recorded nothing for a train has an empty Parameters map.
type DeviceData struct {
	Parameters map[string]*Array
	Metadata   Metadata
}

// TrainData is the record tree for one train, keyed by device address.
// It is built fresh per read and owned by the caller.
type TrainData map[string]*DeviceData

// Train is one extracted train: its ID, its position within the file or run
// it was read from, and its record tree.
type Train struct {
	ID    uint64
	Index int
	Data  TrainData
}

// merge folds other into td. A device present in both is unexpected (it
// means two containers recorded the same device for one train); the later
// contribution wins and the collision is logged.
func (td TrainData) merge(other TrainData, fromPath string) {
	for device, dd := range other {
		if _, dup := td[device]; dup {
			logrus.WithFields(logrus.Fields{
				"device": device,
				"file":   fromPath,
			}).Warn("device present in multiple files for one train; keeping the later contribution")
		}
		td[device] = dd
	}
}

// Selection filters devices and parameters for train reads. Keys are device
// addresses; values are parameter paths, an empty (or nil) list meaning all
// parameters of that device. A nil Selection selects everything.
type Selection map[string][]string

func (s Selection) hasDevice(device string) bool {
	if s == nil {
		return true
	}
	_, ok := s[device]
	return ok
}

func (s Selection) wantsParameter(device, path string) bool {
	if s == nil {
		return true
	}
	params := s[device]
	if len(params) == 0 {
		return true
	}
	for _, p := range params {
		if p == path {
			return true
		}
	}
	return false
}
