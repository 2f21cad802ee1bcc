package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromKeepsDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom([]byte(`
[server]
port = 9090

[backend]
endpoints = http://a:8000/, http://b:8000
timeout = 5s

[history]
limit = 100
window_size = 500
allow_partial = true
timezone = UTC

[poll]
realtime = 2s

[etcd]
endpoints = 127.0.0.1:2379, 127.0.0.2:2379
`))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"http://a:8000", "http://b:8000"}, cfg.Backend.Nodes())
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 100, cfg.History.Limit)
	assert.Equal(t, 500, cfg.History.WindowSize)
	assert.True(t, cfg.History.AllowPartial)
	assert.Equal(t, 2*time.Second, cfg.Poll.Realtime)
	assert.Equal(t, 10*time.Second, cfg.Poll.Devices)
	assert.Equal(t, "auth-storage", cfg.Session.Key)
	assert.Equal(t, []string{"127.0.0.1:2379", "127.0.0.2:2379"}, cfg.Etcd.EtcdEndpoints())

	loc, err := cfg.History.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfigFromValidates(t *testing.T) {
	cases := map[string]string{
		"window size": "[history]\nwindow_size = 0\n",
		"limit":       "[history]\nlimit = -1\n",
		"timezone":    "[history]\ntimezone = Mars/Olympus\n",
		"backend":     "[backend]\nbase_url =\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfigFrom([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestConcurrencyFallsBackToOne(t *testing.T) {
	cfg, err := LoadConfigFrom([]byte("[history]\nconcurrency = 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.History.Concurrency)
}

func TestLocalTimezone(t *testing.T) {
	h := HistoryConfig{Timezone: "local"}
	loc, err := h.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
