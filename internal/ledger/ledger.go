// Package ledger reads the worker's append-only bet log. The supervisor never
// writes here; it only checks whether the worker already acted on a round.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// actionMarker is the substring the worker writes when it places a bet.
const actionMarker = "placed bet"

// Ledger scans a plain-text bet log written by the worker.
type Ledger struct {
	path string
}

// New creates a Ledger for the given file path.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// HasRecordedAction reports whether the ledger contains a placed-bet line for
// the given game and round. A missing ledger file means no record: a worker
// that has not started yet has naturally produced nothing.
func (l *Ledger) HasRecordedAction(gameID, roundID string) (bool, error) {
	if gameID == "" || roundID == "" {
		return false, nil
	}

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	needle := fmt.Sprintf("Game %s Round %s", gameID, roundID)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, needle) && strings.Contains(line, actionMarker) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("scan ledger: %w", err)
	}
	return false, nil
}
