package euxfel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilenameDetector(t *testing.T) {
	fi, err := ParseFilename("/data/r0450/RAW-R0450-AGIPD07-S00000.h5")
	require.NoError(t, err)
	assert.True(t, fi.IsDetector)
	assert.Equal(t, "AGIPD", fi.DetectorName)
	assert.Equal(t, 7, fi.ModuleNumber)
	assert.Equal(t, "Raw detector data from AGIPD module 7", fi.Description)

	fi, err = ParseFilename("CORR-R0210-LPD12-S00003.h5")
	require.NoError(t, err)
	assert.True(t, fi.IsDetector)
	assert.Equal(t, "LPD", fi.DetectorName)
	assert.Equal(t, 12, fi.ModuleNumber)
	assert.Equal(t, "Corrected detector data from LPD module 12", fi.Description)
}

func TestParseFilenameAggregator(t *testing.T) {
	fi, err := ParseFilename("RAW-R0450-DA01-S00000.h5")
	require.NoError(t, err)
	assert.False(t, fi.IsDetector)
	assert.Equal(t, -1, fi.ModuleNumber)
	assert.Equal(t, "Aggregated data", fi.Description)
}

func TestParseFilenameUnknownSource(t *testing.T) {
	fi, err := ParseFilename("RAW-R0450-XYZ-S00000.h5")
	require.NoError(t, err)
	assert.False(t, fi.IsDetector)
	assert.Contains(t, fi.Description, "Unknown data source")
}

func TestParseFilenameUnrecognized(t *testing.T) {
	_, err := ParseFilename("notes.txt")
	assert.Error(t, err)

	_, err = ParseFilename("RAW-R0450-S00000.h5")
	assert.Error(t, err, "wrong number of name parts")
}
