// Package oracle queries the external status endpoint and normalizes every
// failure mode into an "unknown" snapshot. It never returns an error and never
// blocks past its timeout: the supervisor's polling cadence is the retry.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"github.com/mzagar/bnw/internal/domain"
)

// DefaultTimeout bounds a single status fetch.
const DefaultTimeout = 5 * time.Second

// Oracle fetches game status from a fixed HTTP endpoint.
type Oracle struct {
	url    string
	client *http.Client
	clock  clock.Clock
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithClock overrides the wall clock (used by tests).
func WithClock(c clock.Clock) Option {
	return func(o *Oracle) { o.clock = c }
}

// WithHTTPClient overrides the HTTP client (used by tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Oracle) { o.client = c }
}

// New creates an Oracle for the given endpoint URL.
func New(url string, timeout time.Duration, opts ...Option) *Oracle {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	o := &Oracle{
		url:    url,
		client: &http.Client{Timeout: timeout},
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// flexID accepts both string and numeric JSON ids.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", b)
	}
	*f = flexID(n.String())
	return nil
}

type statusPayload struct {
	Game *struct {
		ID     flexID `json:"id"`
		Status string `json:"status"`
	} `json:"game"`
	Rounds []struct {
		ID flexID `json:"id"`
	} `json:"rounds"`
}

// FetchStatus performs one status query. Transport errors, non-2xx responses,
// malformed JSON and null payloads all degrade to an unknown snapshot.
func (o *Oracle) FetchStatus(ctx context.Context) domain.StatusSnapshot {
	now := o.clock.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return domain.UnknownSnapshot(now)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return domain.UnknownSnapshot(now)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.UnknownSnapshot(now)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.UnknownSnapshot(now)
	}

	var payload statusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.UnknownSnapshot(now)
	}
	if payload.Game == nil || payload.Game.ID == "" {
		return domain.UnknownSnapshot(now)
	}

	roundID := latestRound(payload)
	if roundID == "" {
		return domain.UnknownSnapshot(now)
	}

	status := domain.GameInactive
	if payload.Game.Status == "active" {
		status = domain.GameActive
	}

	return domain.StatusSnapshot{
		GameID:     string(payload.Game.ID),
		RoundID:    roundID,
		Status:     status,
		ObtainedAt: now,
	}
}

// latestRound picks the maximum round id. Numeric ids compare numerically,
// anything else falls back to lexical order.
func latestRound(p statusPayload) string {
	var ids []string
	for _, r := range p.Rounds {
		if r.ID != "" {
			ids = append(ids, string(r.ID))
		}
	}
	if len(ids) == 0 {
		return ""
	}
	return lo.MaxBy(ids, func(a, b string) bool {
		na, errA := strconv.ParseInt(a, 10, 64)
		nb, errB := strconv.ParseInt(b, 10, 64)
		if errA == nil && errB == nil {
			return na > nb
		}
		return a > b
	})
}
