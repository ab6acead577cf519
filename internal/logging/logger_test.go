package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
)

func TestSetLevel(t *testing.T) {
	b := &bytes.Buffer{}
	PatchLogger(t, b)

	err := SetLevel("warn")
	assert.NilError(t, err)
	assert.Equal(t, L.GetLevel(), zerolog.WarnLevel)

	Infof("dropped %d", 1)
	assert.Equal(t, b.Len(), 0)

	Warnf("kept %d", 2)
	line := map[string]interface{}{}
	assert.NilError(t, json.Unmarshal(bytes.TrimSpace(b.Bytes()), &line))
	assert.Equal(t, line["message"], "kept 2")
	assert.Equal(t, line["level"], "warn")

	err = SetLevel("loud")
	assert.ErrorContains(t, err, "Unknown Level")
	assert.Equal(t, L.GetLevel(), zerolog.WarnLevel)
}

func TestConsoleFormatLevel(t *testing.T) {
	if isTerminal() {
		t.Skip("stderr is a terminal, levels are colored")
	}

	assert.Equal(t, consoleFormatLevel("info"), "INFO ")
	assert.Equal(t, consoleFormatLevel("error"), "ERROR")
	assert.Equal(t, consoleFormatLevel("loud"), "?????")
	assert.Equal(t, consoleFormatLevel(3), "3")
}

func TestUseFileLogger(t *testing.T) {
	b := &bytes.Buffer{}
	PatchLogger(t, b)
	assert.NilError(t, SetLevel("debug"))

	path := filepath.Join(t.TempDir(), "broker.log")
	UseFileLogger(path)
	Debugf("written to %v", "file")

	content, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(content), "written to file"), string(content))
	assert.Equal(t, b.Len(), 0)
}
