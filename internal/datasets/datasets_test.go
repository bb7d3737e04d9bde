package datasets

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/mcpclick/internal/clickstream"
)

type fakeGate struct {
	acquired int32
	released int32
}

func (g *fakeGate) AcquireDataset(ctx context.Context) error {
	atomic.AddInt32(&g.acquired, 1)
	return nil
}

func (g *fakeGate) ReleaseDataset() {
	atomic.AddInt32(&g.released, 1)
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleCSV = `user_id,session_id,event_name,event_date,engagement_time_msec
u1,s1,session_start,20240101,100
u1,s1,page_view,20240101,200
u2,s2,session_start,20240102,50
`

func TestOpen_CSV(t *testing.T) {
	path := writeCSV(t, "events.csv", sampleCSV)
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, nil, nil)

	id, err := m.Open(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, 1, m.Count())
	require.Equal(t, int32(1), atomic.LoadInt32(&gate.acquired))

	err = m.WithRead(id, func(data *clickstream.Dataset, version int64) error {
		require.Len(t, data.Events, 3)
		require.NotZero(t, version)
		return nil
	})
	require.NoError(t, err)
}

func TestOpen_TSV(t *testing.T) {
	tsv := "user_id\tsession_id\tevent_name\tevent_date\tengagement_time_msec\n" +
		"u1\ts1\tpage_view\t20240101\t300\n"
	path := writeCSV(t, "events.tsv", tsv)
	m := NewManager(time.Minute, time.Minute, nil, nil, nil)

	id, err := m.Open(context.Background(), path)
	require.NoError(t, err)

	err = m.WithRead(id, func(data *clickstream.Dataset, _ int64) error {
		require.Len(t, data.Events, 1)
		require.Equal(t, "page_view", data.Events[0].EventName)
		return nil
	})
	require.NoError(t, err)
}

func TestOpen_XLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	rows := [][]any{
		{"user_id", "session_id", "event_name", "event_date", "engagement_time_msec"},
		{"u1", "s1", "session_start", "20240101", 100},
		{"u1", "s1", "purchase", "20240101", 900},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "events.xlsx")
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	m := NewManager(time.Minute, time.Minute, nil, nil, nil)
	id, err := m.Open(context.Background(), path)
	require.NoError(t, err)

	err = m.WithRead(id, func(data *clickstream.Dataset, _ int64) error {
		require.Len(t, data.Events, 2)
		require.Equal(t, "u1", data.Events[0].UserID)
		require.Equal(t, float64(900), data.Events[1].EngagementMsec)
		return nil
	})
	require.NoError(t, err)
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	path := writeCSV(t, "events.parquet", "binary")
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, nil, nil)

	_, err := m.Open(context.Background(), path)
	require.Error(t, err)
	// capacity must be released on failed opens
	require.Equal(t, atomic.LoadInt32(&gate.acquired), atomic.LoadInt32(&gate.released))
	require.Equal(t, 0, m.Count())
}

func TestOpen_SchemaError(t *testing.T) {
	path := writeCSV(t, "events.csv", "user_id,event_name\nu1,page_view\n")
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, nil, nil)

	_, err := m.Open(context.Background(), path)
	require.Error(t, err)
	var schemaErr *clickstream.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, atomic.LoadInt32(&gate.acquired), atomic.LoadInt32(&gate.released))
}

func TestCloseHandle(t *testing.T) {
	path := writeCSV(t, "events.csv", sampleCSV)
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, nil, nil)

	id, err := m.Open(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, m.CloseHandle(context.Background(), id))
	require.Equal(t, 0, m.Count())
	require.Equal(t, int32(1), atomic.LoadInt32(&gate.released))

	require.ErrorIs(t, m.CloseHandle(context.Background(), id), ErrHandleNotFound)
	require.ErrorIs(t, m.WithRead(id, func(*clickstream.Dataset, int64) error { return nil }), ErrHandleNotFound)
}

func TestEvictExpired(t *testing.T) {
	now := time.Now()
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, nil, func() time.Time { return now })

	id, err := m.Adopt(context.Background(), &clickstream.Dataset{})
	require.NoError(t, err)

	// Not yet expired
	m.EvictExpired()
	require.Equal(t, 1, m.Count())

	// Advance past the TTL without touching the handle
	now = now.Add(2 * time.Minute)
	m.EvictExpired()
	require.Equal(t, 0, m.Count())
	require.Equal(t, int32(1), atomic.LoadInt32(&gate.released))

	_, ok := m.Get(id)
	require.False(t, ok)
}

func TestGet_RefreshesTTL(t *testing.T) {
	now := time.Now()
	m := NewManager(time.Minute, time.Minute, nil, nil, func() time.Time { return now })

	id, err := m.Adopt(context.Background(), &clickstream.Dataset{})
	require.NoError(t, err)

	// Access at 50s keeps the handle alive past the original deadline.
	now = now.Add(50 * time.Second)
	_, ok := m.Get(id)
	require.True(t, ok)

	now = now.Add(50 * time.Second)
	m.EvictExpired()
	require.Equal(t, 1, m.Count())
}

func TestOpen_ReusesCachedHandle(t *testing.T) {
	path := writeCSV(t, "events.csv", sampleCSV)
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, nil, nil)

	first, err := m.Open(context.Background(), path)
	require.NoError(t, err)
	second, err := m.Open(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, m.Count())
	require.Equal(t, int32(1), atomic.LoadInt32(&gate.acquired))
}

func TestOpen_ReloadsWhenFileChanges(t *testing.T) {
	path := writeCSV(t, "events.csv", sampleCSV)
	m := NewManager(time.Minute, time.Minute, nil, nil, nil)

	first, err := m.Open(context.Background(), path)
	require.NoError(t, err)

	// Same content, new mtime: the source identity changes either way.
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	second, err := m.Open(context.Background(), path)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Equal(t, 1, m.Count())

	// The superseded handle is gone.
	_, ok := m.Get(first)
	require.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	path := writeCSV(t, "events.csv", sampleCSV)
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, nil, nil)

	first, err := m.Open(context.Background(), path)
	require.NoError(t, err)

	m.Invalidate(path)
	require.Equal(t, 0, m.Count())
	require.Equal(t, int32(1), atomic.LoadInt32(&gate.released))

	second, err := m.Open(context.Background(), path)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

type denyValidator struct{}

func (denyValidator) ValidateOpenPath(string) (string, error) {
	return "", os.ErrPermission
}

func TestOpen_ValidatorDenies(t *testing.T) {
	path := writeCSV(t, "events.csv", sampleCSV)
	gate := &fakeGate{}
	m := NewManager(time.Minute, time.Minute, gate, denyValidator{}, nil)

	_, err := m.Open(context.Background(), path)
	require.ErrorIs(t, err, os.ErrPermission)
	require.Equal(t, atomic.LoadInt32(&gate.acquired), atomic.LoadInt32(&gate.released))
}

func TestLoadFrame_RaggedRows(t *testing.T) {
	path := writeCSV(t, "events.csv", "user_id,session_id,event_name,event_date,engagement_time_msec\nu1,s1,page_view,20240101\n")
	frame, version, err := LoadFrame(path)
	require.NoError(t, err)
	require.NotZero(t, version)
	require.Len(t, frame.Rows, 1)
	require.Len(t, frame.Rows[0], 4)
}
