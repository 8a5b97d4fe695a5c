package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and returns a restore func.
func captureOutput(t *testing.T, lvl, fmtName string) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.RLock()
	prevOut, prevColor, prevFormat := output, useColor, format
	mu.RUnlock()
	prevLevel := level.Level()

	InitWithWriter(buf, lvl, fmtName, false)

	t.Cleanup(func() {
		mu.Lock()
		output, useColor, format = prevOut, prevColor, prevFormat
		mu.Unlock()
		level.Set(prevLevel)
		rebuild()
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugShowsEverything", func(t *testing.T) {
		buf := captureOutput(t, "DEBUG", "text")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("WarnHidesDebugAndInfo", func(t *testing.T) {
		buf := captureOutput(t, "WARN", "text")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
	})

	t.Run("SetLevelIsCaseInsensitive", func(t *testing.T) {
		buf := captureOutput(t, "error", "text")

		require.NoError(t, SetLevel("info"))
		Info("now visible")
		assert.Contains(t, buf.String(), "now visible")
	})

	t.Run("InvalidLevelIsRejected", func(t *testing.T) {
		captureOutput(t, "INFO", "text")
		assert.Error(t, SetLevel("LOUD"))
	})
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t, "INFO", "json")

	Info("hello", KeyPath, "/home/alice/a.txt", KeySize, 42)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "/home/alice/a.txt", rec[KeyPath])
	assert.EqualValues(t, 42, rec[KeySize])
}

func TestSetFormatRejectsUnknown(t *testing.T) {
	captureOutput(t, "INFO", "text")
	assert.Error(t, SetFormat("xml"))
}

func TestContextFields(t *testing.T) {
	t.Run("FieldsArePrepended", func(t *testing.T) {
		buf := captureOutput(t, "DEBUG", "json")

		lc := NewLogContext("10.0.0.7")
		lc.SessionID = "sess-1"
		lc.Username = "alice"
		ctx := WithContext(context.Background(), lc.ForRequest("READ", 9))

		DebugCtx(ctx, "read done", KeyCount, 10)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "10.0.0.7", rec[KeyClientIP])
		assert.Equal(t, "sess-1", rec[KeySessionID])
		assert.Equal(t, "alice", rec[KeyUsername])
		assert.Equal(t, "READ", rec[KeyProcedure])
		assert.EqualValues(t, 9, rec[KeyRequestID])
		assert.EqualValues(t, 10, rec[KeyCount])
	})

	t.Run("NoContextNoFields", func(t *testing.T) {
		buf := captureOutput(t, "INFO", "json")

		InfoCtx(context.Background(), "plain")
		assert.NotContains(t, buf.String(), KeySessionID)
	})

	t.Run("ForRequestDoesNotMutateParent", func(t *testing.T) {
		parent := NewLogContext("1.2.3.4")
		child := parent.ForRequest("OPEN", 1)

		assert.Empty(t, parent.Procedure)
		assert.Equal(t, "OPEN", child.Procedure)
		assert.Equal(t, "1.2.3.4", child.ClientIP)
	})

	t.Run("NilCloneIsNil", func(t *testing.T) {
		var lc *LogContext
		assert.Nil(t, lc.Clone())
		assert.Zero(t, lc.DurationMs())
	})
}

func TestInitFileOutput(t *testing.T) {
	path := t.TempDir() + "/dray.log"

	mu.RLock()
	prevOut, prevColor := output, useColor
	mu.RUnlock()
	t.Cleanup(func() {
		mu.Lock()
		if closer != nil {
			_ = closer.Close()
			closer = nil
		}
		output, useColor = prevOut, prevColor
		mu.Unlock()
		rebuild()
	})

	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	Info("to file")

	mu.RLock()
	f := closer
	mu.RUnlock()
	require.NotNil(t, f)
}

func TestErrAttr(t *testing.T) {
	assert.True(t, Err(nil).Equal(Err(nil)))
	assert.True(t, strings.Contains(Err(assert.AnError).String(), "assert.AnError"))
}
