// Package quota tracks token consumption against rolling usage windows for
// the rate-limited code-generation service and raises threshold alerts
// exactly once per window instance.
package quota

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ahmedaymanzekry/codex-belya/internal/logging"
	"github.com/ahmedaymanzekry/codex-belya/internal/store"
)

// Kind identifies a rolling window span.
type Kind string

const (
	// KindShort is the short window (5 hours by default).
	KindShort Kind = "short"

	// KindLong is the long window (7 days by default).
	KindLong Kind = "long"
)

// Kinds lists the configured window kinds in a stable order.
var Kinds = []Kind{KindShort, KindLong}

var (
	// ErrInvalidUsage is returned for zero or negative token counts.
	ErrInvalidUsage = errors.New("invalid usage amount")

	// ErrUnknownKind is returned for an unconfigured window kind.
	ErrUnknownKind = errors.New("unknown window kind")
)

// WindowStore persists window state so quota accounting survives restarts.
// *store.Store satisfies this.
type WindowStore interface {
	LoadQuotaWindow(kind string) (*store.QuotaWindowRow, error)
	SaveQuotaWindow(row *store.QuotaWindowRow) error
}

// WindowConfig holds the fixed parameters of one window kind.
type WindowConfig struct {
	// Label is the spoken name of the window ("5-hour", "weekly").
	Label string

	// Duration is the fixed window span.
	Duration time.Duration

	// Capacity is the token ceiling. Zero or negative disables
	// threshold checks for this kind.
	Capacity int64
}

// window is the live state of one rolling window instance.
type window struct {
	cfg         WindowConfig
	start       time.Time
	accumulated int64
	fired       map[int]bool
	started     bool
}

// Tracker maintains the rolling usage windows and their alert state.
type Tracker struct {
	mu         sync.Mutex
	store      WindowStore // nil disables persistence
	thresholds []int       // ascending percentages of capacity
	windows    map[Kind]*window
}

// DefaultThresholds are the standard alert levels, percent of capacity.
var DefaultThresholds = []int{80, 90, 95}

// NewTracker builds a tracker for the given window kinds, restoring any
// persisted window state from ws (which may be nil for ephemeral tracking).
func NewTracker(ws WindowStore, configs map[Kind]WindowConfig, thresholds []int) (*Tracker, error) {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	sorted := append([]int(nil), thresholds...)
	sort.Ints(sorted)

	t := &Tracker{
		store:      ws,
		thresholds: sorted,
		windows:    make(map[Kind]*window, len(configs)),
	}

	for kind, cfg := range configs {
		w := &window{cfg: cfg, fired: make(map[int]bool)}
		if ws != nil {
			row, err := ws.LoadQuotaWindow(string(kind))
			if err != nil && !errors.Is(err, store.ErrWindowNotFound) {
				return nil, fmt.Errorf("failed to restore %s window: %w", kind, err)
			}
			if err == nil {
				w.start = row.WindowStart
				w.accumulated = row.Accumulated
				w.started = true
				for _, th := range row.FiredThresholds {
					w.fired[th] = true
				}
				logging.Quota("Restored %s window: start=%s accumulated=%d fired=%v",
					kind, w.start.Format(time.RFC3339), w.accumulated, row.FiredThresholds)
			}
		}
		t.windows[kind] = w
	}

	return t, nil
}

// RecordUsage adds a usage event to every window kind, rolling any window
// whose span has elapsed relative to the event timestamp. A rollover starts
// the new window at the event timestamp (purely sliding, no calendar
// boundary) with the event's contribution as its only accumulation.
// Each kind's update persists before it commits to memory, so state never
// diverges from the store on a save failure.
func (t *Tracker) RecordUsage(sessionID string, tokens int64, ts time.Time) error {
	if tokens <= 0 {
		return fmt.Errorf("%w: %d tokens", ErrInvalidUsage, tokens)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for kind, w := range t.windows {
		staged := window{cfg: w.cfg, start: w.start, accumulated: w.accumulated, fired: w.fired, started: true}
		rolled := false
		switch {
		case !w.started:
			staged.start = ts
			staged.accumulated = tokens
		case !ts.Before(w.start.Add(w.cfg.Duration)):
			staged.start = ts
			staged.accumulated = tokens
			staged.fired = make(map[int]bool)
			rolled = true
		default:
			staged.accumulated = w.accumulated + tokens
		}

		if err := t.persistLocked(kind, &staged); err != nil {
			return err
		}
		if rolled {
			logging.Quota("Window rolled: kind=%s old_start=%s new_start=%s",
				kind, w.start.Format(time.RFC3339), ts.Format(time.RFC3339))
		}
		*w = staged
	}

	logging.QuotaDebug("Recorded usage: session=%s tokens=%d", sessionID, tokens)
	return nil
}

// CurrentUsage reports the accumulated count, start, and duration of the
// current window instance for a kind.
func (t *Tracker) CurrentUsage(kind Kind) (int64, time.Time, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[kind]
	if !ok {
		return 0, time.Time{}, 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return w.accumulated, w.start, w.cfg.Duration, nil
}

// CheckThresholds returns every configured threshold now at or below the
// current utilization percentage that has not already fired for the current
// window instance, in ascending order, and marks them fired. Each threshold
// fires exactly once per window instance. A capacity of zero disables
// checks entirely.
func (t *Tracker) CheckThresholds(kind Kind) ([]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if w.cfg.Capacity <= 0 || !w.started {
		return nil, nil
	}

	percent := float64(w.accumulated) / float64(w.cfg.Capacity) * 100

	var crossed []int
	for _, th := range t.thresholds {
		if percent >= float64(th) && !w.fired[th] {
			crossed = append(crossed, th)
		}
	}
	if len(crossed) == 0 {
		return nil, nil
	}

	// Persist the enlarged fired set before marking it in memory, so a
	// save failure leaves the thresholds unfired and a retry re-alerts.
	staged := *w
	staged.fired = make(map[int]bool, len(w.fired)+len(crossed))
	for th := range w.fired {
		staged.fired[th] = true
	}
	for _, th := range crossed {
		staged.fired[th] = true
	}
	if err := t.persistLocked(kind, &staged); err != nil {
		return nil, err
	}
	w.fired = staged.fired

	logging.Quota("Thresholds crossed: kind=%s crossed=%v percent=%.1f", kind, crossed, percent)
	return crossed, nil
}

// Percent returns the current utilization percentage for a kind, or zero
// when no capacity is configured.
func (t *Tracker) Percent(kind Kind) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[kind]
	if !ok || w.cfg.Capacity <= 0 {
		return 0
	}
	return float64(w.accumulated) / float64(w.cfg.Capacity) * 100
}

// Summary formats a voice-ready usage line for a window kind.
func (t *Tracker) Summary(kind Kind) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[kind]
	if !ok {
		return ""
	}
	if !w.started {
		return fmt.Sprintf("No %s window usage recorded yet.", w.cfg.Label)
	}
	if w.cfg.Capacity <= 0 {
		return fmt.Sprintf("%s window usage: %d tokens consumed.", w.cfg.Label, w.accumulated)
	}
	percent := float64(w.accumulated) / float64(w.cfg.Capacity) * 100
	return fmt.Sprintf("%s window usage: %d of %d tokens (%.1f%% used).",
		w.cfg.Label, w.accumulated, w.cfg.Capacity, percent)
}

// AlertMessage formats the spoken warning for a crossed threshold.
func (t *Tracker) AlertMessage(kind Kind, threshold int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[kind]
	if !ok || w.cfg.Capacity <= 0 {
		return ""
	}
	return fmt.Sprintf("Warning: %s token usage crossed %d%% (%d of %d tokens).",
		w.cfg.Label, threshold, w.accumulated, w.cfg.Capacity)
}

func (t *Tracker) persistLocked(kind Kind, w *window) error {
	if t.store == nil {
		return nil
	}
	fired := make([]int, 0, len(w.fired))
	for th := range w.fired {
		fired = append(fired, th)
	}
	sort.Ints(fired)
	row := &store.QuotaWindowRow{
		Kind:            string(kind),
		WindowStart:     w.start,
		Accumulated:     w.accumulated,
		FiredThresholds: fired,
	}
	if err := t.store.SaveQuotaWindow(row); err != nil {
		return fmt.Errorf("failed to persist %s window: %w", kind, err)
	}
	return nil
}
