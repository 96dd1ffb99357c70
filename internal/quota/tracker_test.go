package quota

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedaymanzekry/codex-belya/internal/store"
)

// memStore is an in-memory WindowStore for tracker tests.
type memStore struct {
	rows map[string]*store.QuotaWindowRow
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*store.QuotaWindowRow)}
}

func (m *memStore) LoadQuotaWindow(kind string) (*store.QuotaWindowRow, error) {
	row, ok := m.rows[kind]
	if !ok {
		return nil, store.ErrWindowNotFound
	}
	cp := *row
	cp.FiredThresholds = append([]int(nil), row.FiredThresholds...)
	return &cp, nil
}

func (m *memStore) SaveQuotaWindow(row *store.QuotaWindowRow) error {
	cp := *row
	cp.FiredThresholds = append([]int(nil), row.FiredThresholds...)
	m.rows[row.Kind] = &cp
	return nil
}

func testConfigs() map[Kind]WindowConfig {
	return map[Kind]WindowConfig{
		KindShort: {Label: "5-hour", Duration: 5 * time.Hour, Capacity: 1000},
		KindLong:  {Label: "weekly", Duration: 7 * 24 * time.Hour, Capacity: 10000},
	}
}

func TestRecordUsage_Validation(t *testing.T) {
	tracker, err := NewTracker(nil, testConfigs(), nil)
	require.NoError(t, err)

	err = tracker.RecordUsage("s1", 0, time.Now())
	assert.ErrorIs(t, err, ErrInvalidUsage)

	err = tracker.RecordUsage("s1", -5, time.Now())
	assert.ErrorIs(t, err, ErrInvalidUsage)

	used, _, _, err := tracker.CurrentUsage(KindShort)
	require.NoError(t, err)
	assert.Zero(t, used, "rejected events must not accumulate")
}

func TestCheckThresholds_ExactlyOncePerWindow(t *testing.T) {
	tracker, err := NewTracker(nil, testConfigs(), []int{80, 90, 95})
	require.NoError(t, err)

	now := time.Now()

	require.NoError(t, tracker.RecordUsage("s1", 750, now))
	crossed, err := tracker.CheckThresholds(KindShort)
	require.NoError(t, err)
	assert.Empty(t, crossed, "75%% crosses nothing")

	// 950 total: 80 and 90 cross together, ascending, in one call.
	require.NoError(t, tracker.RecordUsage("s1", 200, now.Add(time.Minute)))
	crossed, err = tracker.CheckThresholds(KindShort)
	require.NoError(t, err)
	assert.Equal(t, []int{80, 90}, crossed)

	// 960 total: still above 80 and 90, neither fires again.
	require.NoError(t, tracker.RecordUsage("s1", 10, now.Add(2*time.Minute)))
	crossed, err = tracker.CheckThresholds(KindShort)
	require.NoError(t, err)
	assert.Empty(t, crossed)

	// 970 total: crossing 95 fires only 95.
	require.NoError(t, tracker.RecordUsage("s1", 10, now.Add(3*time.Minute)))
	crossed, err = tracker.CheckThresholds(KindShort)
	require.NoError(t, err)
	assert.Equal(t, []int{95}, crossed)
}

func TestRecordUsage_RollsExpiredWindow(t *testing.T) {
	tracker, err := NewTracker(nil, testConfigs(), nil)
	require.NoError(t, err)

	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.RecordUsage("s1", 100, t0))

	used, start, _, err := tracker.CurrentUsage(KindShort)
	require.NoError(t, err)
	assert.Equal(t, int64(100), used)
	assert.True(t, start.Equal(t0))

	// Six hours later the 5-hour window has elapsed: the event opens a
	// fresh window holding only its own contribution.
	t1 := t0.Add(6 * time.Hour)
	require.NoError(t, tracker.RecordUsage("s1", 50, t1))

	used, start, _, err = tracker.CurrentUsage(KindShort)
	require.NoError(t, err)
	assert.Equal(t, int64(50), used)
	assert.True(t, start.Equal(t1))

	// The weekly window has not elapsed and keeps accumulating.
	used, _, _, err = tracker.CurrentUsage(KindLong)
	require.NoError(t, err)
	assert.Equal(t, int64(150), used)
}

func TestRollover_ResetsFiredThresholds(t *testing.T) {
	tracker, err := NewTracker(nil, testConfigs(), []int{80, 90, 95})
	require.NoError(t, err)

	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.RecordUsage("s1", 950, t0))
	crossed, err := tracker.CheckThresholds(KindShort)
	require.NoError(t, err)
	require.Equal(t, []int{80, 90}, crossed)

	// After rollover the fired set clears, so crossing again re-alerts.
	t1 := t0.Add(6 * time.Hour)
	require.NoError(t, tracker.RecordUsage("s1", 850, t1))
	crossed, err = tracker.CheckThresholds(KindShort)
	require.NoError(t, err)
	assert.Equal(t, []int{80}, crossed)
}

func TestZeroCapacityDisablesThresholds(t *testing.T) {
	configs := testConfigs()
	cfg := configs[KindShort]
	cfg.Capacity = 0
	configs[KindShort] = cfg

	tracker, err := NewTracker(nil, configs, nil)
	require.NoError(t, err)

	require.NoError(t, tracker.RecordUsage("s1", 1_000_000, time.Now()))
	crossed, err := tracker.CheckThresholds(KindShort)
	require.NoError(t, err)
	assert.Empty(t, crossed)

	// Accumulation still works for reporting.
	used, _, _, err := tracker.CurrentUsage(KindShort)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), used)
}

func TestUnknownKind(t *testing.T) {
	tracker, err := NewTracker(nil, testConfigs(), nil)
	require.NoError(t, err)

	_, _, _, err = tracker.CurrentUsage(Kind("monthly"))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = tracker.CheckThresholds(Kind("monthly"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestPersistence_RestoresWindowAndFiredSet(t *testing.T) {
	ms := newMemStore()

	tracker, err := NewTracker(ms, testConfigs(), []int{80, 90, 95})
	require.NoError(t, err)

	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.RecordUsage("s1", 850, t0))
	crossed, err := tracker.CheckThresholds(KindShort)
	require.NoError(t, err)
	require.Equal(t, []int{80}, crossed)

	// A fresh tracker over the same store resumes the window mid-flight.
	restored, err := NewTracker(ms, testConfigs(), []int{80, 90, 95})
	require.NoError(t, err)

	used, start, _, err := restored.CurrentUsage(KindShort)
	require.NoError(t, err)
	assert.Equal(t, int64(850), used)
	assert.True(t, start.Equal(t0))

	// 80 already fired before the restart and must not fire again.
	require.NoError(t, restored.RecordUsage("s1", 100, t0.Add(time.Minute)))
	crossed, err = restored.CheckThresholds(KindShort)
	require.NoError(t, err)
	assert.Equal(t, []int{90, 95}, crossed)
}

// flakyStore fails saves on demand while loads keep working.
type flakyStore struct {
	*memStore
	failSaves bool
}

func (f *flakyStore) SaveQuotaWindow(row *store.QuotaWindowRow) error {
	if f.failSaves {
		return errors.New("disk full")
	}
	return f.memStore.SaveQuotaWindow(row)
}

func TestRecordUsage_SaveFailureLeavesStateUnchanged(t *testing.T) {
	ms := &flakyStore{memStore: newMemStore()}
	tracker, err := NewTracker(ms, testConfigs(), nil)
	require.NoError(t, err)

	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	ms.failSaves = true
	err = tracker.RecordUsage("s1", 100, t0)
	require.Error(t, err)

	// Memory matches the store: nothing accumulated anywhere.
	for _, kind := range Kinds {
		used, _, _, err := tracker.CurrentUsage(kind)
		require.NoError(t, err)
		assert.Zero(t, used, "%s window must not commit on a failed save", kind)
	}

	// Once saves recover the same event records cleanly.
	ms.failSaves = false
	require.NoError(t, tracker.RecordUsage("s1", 100, t0))
	used, _, _, err := tracker.CurrentUsage(KindShort)
	require.NoError(t, err)
	assert.Equal(t, int64(100), used)
}

func TestCheckThresholds_SaveFailureReAlerts(t *testing.T) {
	ms := &flakyStore{memStore: newMemStore()}
	tracker, err := NewTracker(ms, testConfigs(), []int{80, 90, 95})
	require.NoError(t, err)

	require.NoError(t, tracker.RecordUsage("s1", 850, time.Now()))

	ms.failSaves = true
	_, err = tracker.CheckThresholds(KindShort)
	require.Error(t, err)

	// The failed save did not mark the threshold fired, so the alert is
	// not lost: the next check returns it.
	ms.failSaves = false
	crossed, err := tracker.CheckThresholds(KindShort)
	require.NoError(t, err)
	assert.Equal(t, []int{80}, crossed)
}

func TestSummary(t *testing.T) {
	tracker, err := NewTracker(nil, testConfigs(), nil)
	require.NoError(t, err)

	assert.Contains(t, tracker.Summary(KindShort), "No 5-hour window usage")

	require.NoError(t, tracker.RecordUsage("s1", 250, time.Now()))
	summary := tracker.Summary(KindShort)
	assert.Contains(t, summary, "250 of 1000")
	assert.Contains(t, summary, "25.0%")

	msg := tracker.AlertMessage(KindShort, 80)
	assert.Contains(t, msg, "80%")
	assert.Contains(t, msg, "5-hour")
}
