package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/lobbyhost/internal/influx"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mu     sync.Mutex
	points []*influxdb2_write.Point
	err    error
}

func (m *mockWriter) WritePoint(_ context.Context, p *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, p)
	return m.err
}

func (m *mockWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

func status() influx.LobbyStatus {
	return influx.LobbyStatus{GameUUID: "g-1", Map: "island", ActiveSlots: 3, NetworkSlots: 1}
}

func TestSample_WritesFileAndPoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	w := &mockWriter{}
	s := NewService(Dependencies{Status: status, Influx: w, StatusFile: path})

	require.NoError(t, s.Sample(context.Background()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got influx.LobbyStatus
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "g-1", got.GameUUID)
	assert.Equal(t, 3, got.ActiveSlots)
	assert.False(t, got.Time.IsZero())
	assert.Equal(t, 1, w.count())
}

func TestSample_ReportsWriterError(t *testing.T) {
	w := &mockWriter{err: errors.New("down")}
	s := NewService(Dependencies{Status: status, Influx: w})
	assert.EqualError(t, s.Sample(context.Background()), "down")
}

func TestSample_BadStatusPath(t *testing.T) {
	s := NewService(Dependencies{Status: status, StatusFile: filepath.Join(t.TempDir(), "missing", "status.json")})
	err := s.Sample(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write status file")
}

func TestStartStop(t *testing.T) {
	w := &mockWriter{}
	s := NewService(Dependencies{Status: status, Influx: w, Interval: 5 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")

	assert.Eventually(t, func() bool { return w.count() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestStart_ContextCancel(t *testing.T) {
	s := NewService(Dependencies{Status: status, Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, time.Millisecond)
}

func TestStart_NeedsStatus(t *testing.T) {
	s := NewService(Dependencies{})
	assert.Error(t, s.Start(context.Background()))
}
