package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunParamsDefaults(t *testing.T) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	params, err := parseRunParams(fs, nil)
	require.NoError(t, err)

	assert.Equal(t, "tracks.db", *params.InputDB)
	assert.Equal(t, "output", *params.OutputDir)
	assert.Equal(t, 24.0, *params.CadenceHours)
	assert.Equal(t, 3, *params.MinWindow)
}

func TestParseRunParamsFlagBeatsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cadence_hours": 12, "min_window": 5}`), 0644))

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	params, err := parseRunParams(fs, []string{"-config", path, "-min-window", "4", "-input", "seals.db"})
	require.NoError(t, err)

	assert.Equal(t, 12.0, *params.CadenceHours, "file overrides default")
	assert.Equal(t, 4, *params.MinWindow, "flag overrides file")
	assert.Equal(t, "seals.db", *params.InputDB)
	assert.Equal(t, "output", *params.OutputDir, "untouched fields keep defaults")
}

func TestParseRunParamsRejectsInvalid(t *testing.T) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	_, err := parseRunParams(fs, []string{"-cadence-hours", "0"})
	assert.Error(t, err)

	fs = flag.NewFlagSet("run", flag.ContinueOnError)
	_, err = parseRunParams(fs, []string{"-min-window", "1"})
	assert.Error(t, err)
}
