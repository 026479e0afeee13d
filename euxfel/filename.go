package euxfel

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Detector names recognized in container file names.
var detectorNames = map[string]bool{
	"AGIPD": true,
	"LPD":   true,
}

var rawCorrDescr = map[string]string{
	"RAW":  "Raw",
	"CORR": "Corrected",
}

var dataSourceRe = regexp.MustCompile(`^([A-Z]+)(\d+)`)

// FileInfo classifies a container file from its name. EuXFEL files follow
// the pattern <RAW|CORR>-R<run>-<source><no>-S<segment>.h5, where the source
// token identifies either a data aggregator (DA) or one detector module.
type FileInfo struct {
	Basename     string
	IsDetector   bool
	DetectorName string
	ModuleNumber int
	Description  string
}

// ParseFilename classifies a container file path by its name alone; the file
// is not opened and need not exist.
func ParseFilename(path string) (*FileInfo, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, ".h5")
	parts := strings.Split(stem, "-")
	if len(parts) != 4 {
		return nil, fmt.Errorf("unrecognized container file name %q", base)
	}
	rawCorr, dataSrc := parts[0], parts[2]

	fi := &FileInfo{Basename: base, ModuleNumber: -1}
	m := dataSourceRe.FindStringSubmatch(dataSrc)
	switch {
	case m != nil && m[1] == "DA":
		fi.Description = "Aggregated data"
	case m != nil && detectorNames[m[1]]:
		module, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("module number in %q: %w", base, err)
		}
		descr := rawCorrDescr[rawCorr]
		if descr == "" {
			descr = "?"
		}
		fi.IsDetector = true
		fi.DetectorName = m[1]
		fi.ModuleNumber = module
		fi.Description = fmt.Sprintf("%s detector data from %s module %d", descr, m[1], module)
	default:
		fi.Description = fmt.Sprintf("Unknown data source (%s)", dataSrc)
	}
	return fi, nil
}
