// Package index decodes the per-source INDEX tables that map a train's
// position within a container file to a row range in that source's datasets.
//
// Two on-disk encodings exist. Older files store three columns per source:
// status (0/1), first and last (inclusive). Newer files store two: first and
// count. The encoding is detected once per source from which columns are
// present, not per lookup.
package index

import "errors"

// ErrMalformed reports an index table that matches neither known encoding.
// It is fatal for the affected source only; the container stays readable.
var ErrMalformed = errors.New("malformed index table")

type encoding int

const (
	encFirstLast encoding = iota // status/first/last
	encFirstCount                // first/count
)

// Table holds one source's decoded index columns.
type Table struct {
	enc    encoding
	first  []uint64
	last   []uint64 // encFirstLast only
	status []uint64 // encFirstLast only
	count  []uint64 // encFirstCount only
}

// New builds a Table from whichever columns the file carries. Columns the
// encoding does not use may be nil. A count column selects the first/count
// encoding; otherwise last and status must both be present.
func New(first, last, status, count []uint64) (*Table, error) {
	if first == nil {
		return nil, ErrMalformed
	}
	if count != nil {
		return &Table{enc: encFirstCount, first: first, count: count}, nil
	}
	if last != nil && status != nil {
		return &Table{enc: encFirstLast, first: first, last: last, status: status}, nil
	}
	return nil, ErrMalformed
}

// Len returns the number of train positions the table covers.
func (t *Table) Len() int {
	return len(t.first)
}

// Range resolves a train position to an inclusive row range [first, last].
// ok is false when the source recorded no data for that train: an inactive
// status, a zero count, a position past the end of the table, or a corrupt
// first > last row. None of these are errors; the caller skips the source
// for that train.
func (t *Table) Range(pos int) (first, last uint64, ok bool) {
	if pos < 0 || pos >= t.Len() {
		return 0, 0, false
	}
	first = t.first[pos]
	switch t.enc {
	case encFirstCount:
		n := t.count[pos]
		if n == 0 {
			return 0, 0, false
		}
		return first, first + n - 1, true
	default:
		if pos >= len(t.last) || pos >= len(t.status) || t.status[pos] == 0 {
			return 0, 0, false
		}
		last = t.last[pos]
		if last < first {
			return 0, 0, false
		}
		return first, last, true
	}
}

// Count returns the number of rows recorded for a train position, zero when
// the position is inactive or out of range.
func (t *Table) Count(pos int) uint64 {
	first, last, ok := t.Range(pos)
	if !ok {
		return 0
	}
	return last - first + 1
}

// MaxCount returns the largest per-train row count. Some trains legitimately
// carry zero rows, so the maximum is the interesting figure.
func (t *Table) MaxCount() uint64 {
	var max uint64
	for pos := 0; pos < t.Len(); pos++ {
		if n := t.Count(pos); n > max {
			max = n
		}
	}
	return max
}

// TotalCount returns the sum of row counts across all train positions.
func (t *Table) TotalCount() uint64 {
	var total uint64
	for pos := 0; pos < t.Len(); pos++ {
		total += t.Count(pos)
	}
	return total
}
