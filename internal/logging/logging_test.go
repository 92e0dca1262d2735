package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "lobbylogs",
			want:    filepath.Join("lobbylogs", "lobbyhost.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./lobbylogs",
			want:    filepath.Join(".", "lobbylogs", "lobbyhost.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "lobby"),
			want:    filepath.Join("/var", "log", "lobby", "lobbyhost.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, ServiceName, sessionStart))
		})
	}
}

func TestNewGraylogWriter(t *testing.T) {
	// UDP dial does not need a listener
	w, err := NewGraylogWriter("127.0.0.1:12201")
	require.NoError(t, err)
	assert.Equal(t, ServiceName, w.Facility)
	assert.NoError(t, w.Close())
}
