package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optitrack/config"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DBPath:          filepath.Join(dir, "optitrack.db"),
		ActivityDir:     filepath.Join(dir, "activity"),
		QuoteGatewayURL: "http://127.0.0.1:1",
		RefreshInterval: time.Second,
		CacheTTL:        time.Second,
	}
}

func runCmd(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	root := newRootCmd(cfg, logger)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	out, err := runCmd(t, testConfig(t), "normalize", "9988", "aapl.us", "600519")
	require.NoError(t, err)

	assert.Contains(t, out, "9988\tHK.09988")
	assert.Contains(t, out, "aapl.us\tUS.AAPL")
	assert.Contains(t, out, "600519\tSH.600519")

	_, err = runCmd(t, testConfig(t), "normalize", "??")
	assert.Error(t, err)
}

func TestSweepCommandOnEmptyDatabase(t *testing.T) {
	out, err := runCmd(t, testConfig(t), "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "0 position(s) changed")
}

func TestRefreshCommandOnEmptyDatabase(t *testing.T) {
	out, err := runCmd(t, testConfig(t), "refresh")
	require.NoError(t, err)

	var records []interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	assert.Empty(t, records)
}

func TestSummaryCommandUnknownPosition(t *testing.T) {
	_, err := runCmd(t, testConfig(t), "summary", "missing", "--offline")
	assert.Error(t, err)
}
