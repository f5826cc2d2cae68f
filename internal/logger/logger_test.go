package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, verbose bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verbose)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestGatedLevels(t *testing.T) {
	tests := []struct {
		name string
		log  func()
		want string
	}{
		{"debug", func() { Debug("aggregating %s", "judge-x") }, "[DEBUG] aggregating judge-x\n"},
		{"info", func() { Info("%d records", 12) }, "[INFO] 12 records\n"},
		{"warn", func() { Warn("skipped %q", "doc-3") }, "[WARN] skipped \"doc-3\"\n"},
		{"section", func() { Section("Aggregation: judge-x") }, "\n=== Aggregation: judge-x ===\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name+" verbose", func(t *testing.T) {
			buf := capture(t, true)
			tt.log()
			assert.Equal(t, tt.want, buf.String())
		})
		t.Run(tt.name+" quiet", func(t *testing.T) {
			buf := capture(t, false)
			tt.log()
			assert.Empty(t, buf.String())
		})
	}
}

func TestError_AlwaysPrinted(t *testing.T) {
	buf := capture(t, false)
	Error("persisting %s: %v", "judge-x", "disk full")
	assert.Equal(t, "[ERROR] persisting judge-x: disk full\n", buf.String())
}
