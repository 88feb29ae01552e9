package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/milk9111/gravnav/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		outPath, algorithm, configPath, cacheDir = "", "", "", ""
		fromFlag, toFlag = nil, nil
		allowPart, jsonOutput = false, false
		logLevel = "info"
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "open.vol")
	stdout, err := execute(t, "build", "open", "--log-level", "error", "--out", out)
	require.NoError(t, err, stdout)

	var report buildReport
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "open", report.Scene)
	assert.Greater(t, report.Nodes, 0)
	assert.Equal(t, out, report.Out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	v, err := volume.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, report.Fingerprint, v.Fingerprint())
}

func TestPathCommand(t *testing.T) {
	stdout, err := execute(t, "path", "two_regions", "--log-level", "error",
		"--from", "2.5,4.5,4.5", "--to", "13.5,4.5,4.5", "--algorithm", "astar", "--json")
	require.NoError(t, err, stdout)

	var report pathReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "astar", report.Algorithm)
	assert.Greater(t, report.Penalty, 0.0)
	assert.InDelta(t, report.Length+report.Penalty, report.Cost, 1e-9)

	transitions := 0
	for _, wp := range report.Waypoints {
		if wp.Transition {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)
}

func TestPathCommandNotFound(t *testing.T) {
	_, err := execute(t, "path", "split", "--log-level", "error", "--from", "2,4,4", "--to", "14,4,4")
	assert.Error(t, err)
}

func TestParseVec(t *testing.T) {
	v, err := parseVec("from", []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v[1])
	_, err = parseVec("from", []float64{1, 2})
	assert.Error(t, err)
}

func TestLoadSceneFallsBackToBundled(t *testing.T) {
	sc, err := loadScene("planet")
	require.NoError(t, err)
	assert.Equal(t, "planet", sc.Name)
	_, err = loadScene("no_such_scene")
	assert.Error(t, err)
}
