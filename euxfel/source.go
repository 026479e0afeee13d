package euxfel

import "strings"

// Fixed group locations inside a container file.
const (
	runGroup      = "RUN"
	indexGroup    = "INDEX"
	metadataGroup = "METADATA"
)

// Source categories as they appear in METADATA/dataSourceId.
const (
	categoryControl    = "CONTROL"
	categoryInstrument = "INSTRUMENT"
)

// source is one parsed dataSourceId entry, e.g.
//
//	CONTROL/SPB_XTD9_XGM/DOOCS/MAIN
//	INSTRUMENT/SPB_DET_AGIPD1M-1/DET/7CH0:xtdf/image
type source struct {
	id       string // full dataSourceId
	category string
	h5path   string // id without the category prefix; group path in the file
	device   string // first three h5path segments; key in the record tree
	sub      string // remaining segments, dot-joined; parameter path prefix
}

func parseSource(id string) source {
	category, rest, _ := strings.Cut(id, "/")
	parts := strings.Split(rest, "/")
	n := len(parts)
	if n > 3 {
		n = 3
	}
	return source{
		id:       id,
		category: category,
		h5path:   rest,
		device:   strings.Join(parts[:n], "/"),
		sub:      strings.Join(parts[n:], "."),
	}
}

// joinParamPath builds the dot-joined parameter path of a leaf dataset from
// the source's sub-path prefix and the leaf's slash path within the source
// subtree, dropping empty segments.
func joinParamPath(prefix, leaf string) string {
	segs := make([]string, 0, 4)
	if prefix != "" {
		segs = append(segs, prefix)
	}
	for _, s := range strings.Split(leaf, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return strings.Join(segs, ".")
}
