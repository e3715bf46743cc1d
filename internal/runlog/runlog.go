// Package runlog reads and appends to the worker's runtime log. The log is the
// only channel for learning how the worker (or a previous supervisor) exited,
// and the only evidence source for un-pausing after an operator stop.
//
// Both exit-code and error-signature detection match free-form text and are
// best-effort heuristics, which is why the signature set is configuration
// rather than a hardcoded list.
package runlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ExitMarker prefixes the exit-code line appended when the worker or the
// supervisor terminates.
const ExitMarker = "[WATCHDOG_EXIT_CODE]"

// DefaultSignatures are the error substrings scanned for while paused.
func DefaultSignatures() []string {
	return []string{
		"Traceback (most recent call last)",
		"Error",
		"CUDA out of memory",
		"OutOfMemory",
		"Killed process",
	}
}

// Scanner reads the runtime log.
type Scanner struct {
	path       string
	signatures []string
}

// New creates a Scanner. Empty signatures fall back to the defaults.
func New(path string, signatures []string) *Scanner {
	if len(signatures) == 0 {
		signatures = DefaultSignatures()
	}
	return &Scanner{path: path, signatures: signatures}
}

// Path returns the runtime log path.
func (s *Scanner) Path() string {
	return s.path
}

// LastExitCode returns the code from the most recent exit marker line along
// with the byte offset where that line starts. The offset lets the caller
// tell a freshly appended marker from one it already handled. found is false
// when the log is missing or carries no marker.
func (s *Scanner) LastExitCode() (code int, offset int64, found bool, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("open runtime log: %w", err)
	}
	defer f.Close()

	var pos int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		lineStart := pos
		pos += int64(len(scanner.Bytes())) + 1
		idx := strings.Index(line, ExitMarker)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len(ExitMarker):])
		if fields := strings.Fields(rest); len(fields) > 0 {
			if c, perr := strconv.Atoi(fields[0]); perr == nil {
				code, offset, found = c, lineStart, true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, false, fmt.Errorf("scan runtime log: %w", err)
	}
	return code, offset, found, nil
}

// Size returns the current byte length of the log, used as the pause
// watermark. A missing log has size zero.
func (s *Scanner) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat runtime log: %w", err)
	}
	return info.Size(), nil
}

// ScanForSignatures reads content appended after the given byte offset and
// returns the first matching error signature, plus the new offset. An empty
// match means nothing was found. A truncated or missing log rewinds the
// offset to zero so the next call starts over.
func (s *Scanner) ScanForSignatures(from int64) (match string, newOffset int64, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, nil
		}
		return "", from, fmt.Errorf("open runtime log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", from, fmt.Errorf("stat runtime log: %w", err)
	}
	if info.Size() < from {
		from = 0
	}
	if info.Size() == from {
		return "", from, nil
	}

	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return "", from, fmt.Errorf("seek runtime log: %w", err)
	}

	newOffset = from
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		newOffset += int64(len(scanner.Bytes())) + 1
		for _, sig := range s.signatures {
			if strings.Contains(line, sig) {
				return sig, newOffset, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", newOffset, fmt.Errorf("scan runtime log: %w", err)
	}
	return "", info.Size(), nil
}

// AppendExitMarker appends an exit-code marker line. Called by the supervisor
// on its own exit paths so a later run can tell how this one ended.
func (s *Scanner) AppendExitMarker(code int) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open runtime log for append: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s %d\n", ExitMarker, code); err != nil {
		return fmt.Errorf("append exit marker: %w", err)
	}
	return nil
}
