package runlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempLog(t *testing.T, content string) *Scanner {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtime.log")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return New(path, nil)
}

func appendTo(t *testing.T, s *Scanner, content string) {
	t.Helper()
	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func TestLastExitCode(t *testing.T) {
	t.Run("missing log has no code", func(t *testing.T) {
		s := tempLog(t, "")
		_, _, found, err := s.LastExitCode()
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("finds single marker", func(t *testing.T) {
		s := tempLog(t, "worker output\n[WATCHDOG_EXIT_CODE] 130\n")
		code, offset, found, err := s.LastExitCode()
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 130, code)
		assert.Equal(t, int64(len("worker output\n")), offset)
	})

	t.Run("last marker wins and offsets advance", func(t *testing.T) {
		s := tempLog(t, "[WATCHDOG_EXIT_CODE] 130\nrestarted\n[WATCHDOG_EXIT_CODE] 0\n")
		code, offset, found, err := s.LastExitCode()
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 0, code)
		assert.Greater(t, offset, int64(0))
	})

	t.Run("marker embedded mid-line still parses", func(t *testing.T) {
		s := tempLog(t, "2026-01-02 12:00:01 [WATCHDOG_EXIT_CODE] 137 oom\n")
		code, _, found, err := s.LastExitCode()
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 137, code)
	})

	t.Run("garbage after marker is ignored", func(t *testing.T) {
		s := tempLog(t, "[WATCHDOG_EXIT_CODE] not-a-number\n")
		_, _, found, err := s.LastExitCode()
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestScanForSignatures(t *testing.T) {
	t.Run("missing log matches nothing", func(t *testing.T) {
		s := New(filepath.Join(t.TempDir(), "never.log"), nil)
		match, off, err := s.ScanForSignatures(0)
		require.NoError(t, err)
		assert.Empty(t, match)
		assert.Zero(t, off)
	})

	t.Run("only content after the watermark is scanned", func(t *testing.T) {
		s := tempLog(t, "Error: old failure before pause\n")
		watermark, err := s.Size()
		require.NoError(t, err)

		match, off, err := s.ScanForSignatures(watermark)
		require.NoError(t, err)
		assert.Empty(t, match, "pre-watermark errors must not count")
		assert.Equal(t, watermark, off)

		appendTo(t, s, "loading model\nCUDA out of memory\n")
		match, _, err = s.ScanForSignatures(watermark)
		require.NoError(t, err)
		assert.Equal(t, "CUDA out of memory", match)
	})

	t.Run("offset advances across clean scans", func(t *testing.T) {
		s := tempLog(t, "line one\n")
		_, off, err := s.ScanForSignatures(0)
		require.NoError(t, err)

		appendTo(t, s, "line two\n")
		match, off2, err := s.ScanForSignatures(off)
		require.NoError(t, err)
		assert.Empty(t, match)
		assert.Greater(t, off2, off)
	})

	t.Run("truncated log rewinds to zero", func(t *testing.T) {
		s := tempLog(t, "some very long content that will disappear\n")
		size, err := s.Size()
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(s.Path(), []byte("Killed process 42\n"), 0o644))
		match, _, err := s.ScanForSignatures(size)
		require.NoError(t, err)
		assert.Equal(t, "Killed process", match)
	})

	t.Run("custom signature set", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runtime.log")
		require.NoError(t, os.WriteFile(path, []byte("FATAL meltdown\n"), 0o644))
		s := New(path, []string{"FATAL"})
		match, _, err := s.ScanForSignatures(0)
		require.NoError(t, err)
		assert.Equal(t, "FATAL", match)
	})
}

func TestAppendExitMarker(t *testing.T) {
	t.Run("creates log when missing", func(t *testing.T) {
		s := New(filepath.Join(t.TempDir(), "runtime.log"), nil)
		require.NoError(t, s.AppendExitMarker(130))

		code, _, found, err := s.LastExitCode()
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 130, code)
	})

	t.Run("appends without clobbering history", func(t *testing.T) {
		s := tempLog(t, "existing output\n")
		require.NoError(t, s.AppendExitMarker(143))

		data, err := os.ReadFile(s.Path())
		require.NoError(t, err)
		assert.Contains(t, string(data), "existing output")
		assert.Contains(t, string(data), "[WATCHDOG_EXIT_CODE] 143")
	})
}
