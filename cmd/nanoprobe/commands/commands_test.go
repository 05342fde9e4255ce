package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/teranos/nanoprobe/internal/util"
	"github.com/teranos/nanoprobe/pulse/history"
	"github.com/teranos/nanoprobe/pulse/monitor"
	"github.com/teranos/nanoprobe/pulse/rscqueue"
)

func TestRenderSettings(t *testing.T) {
	settings := map[string]interface{}{
		"queue":    map[string]interface{}{"tick_interval_ms": 1000},
		"database": map[string]interface{}{"path": "nanoprobe.db"},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderSettings(&buf, "json", settings))

		var back map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
		assert.Equal(t, "nanoprobe.db", back["database"]["path"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderSettings(&buf, "yaml", settings))

		var back map[string]map[string]interface{}
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
		assert.Equal(t, 1000, back["queue"]["tick_interval_ms"])
	})

	t.Run("toml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderSettings(&buf, "toml", settings))
		assert.Contains(t, buf.String(), "[database]")
		assert.Contains(t, buf.String(), "tick_interval_ms = 1000")
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Error(t, renderSettings(&bytes.Buffer{}, "xml", settings))
	})
}

func TestExecutionTable(t *testing.T) {
	execs := []*history.Execution{
		{
			ID:         "0b4f9c1e-7d2a-4e55-9a3c-1f2e3d4c5b6a",
			Resource:   "nic0",
			Command:    "ping -c1 10.0.0.1",
			Status:     history.StatusFailed,
			StartedAt:  "2026-03-01T10:00:00.000Z",
			DurationMs: util.Ptr(30000),
			HowDied:    util.Ptr("signaled"),
			ExitCode:   util.Ptr(9),
			TimedOut:   true,
		},
		{ID: "short", Resource: "eth1", Status: history.StatusRunning},
	}

	rows := executionTable(execs)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, []string{"0b4f9c1e", "nic0", "failed", "2026-03-01T10:00:00.000Z", "30000ms", "signaled(9) timeout", "ping -c1 10.0.0.1"}, rows[1])
	assert.Equal(t, "short", rows[2][0])
	assert.Equal(t, "-", rows[2][4])
	assert.Equal(t, "-", rows[2][5])
}

func TestForceOnce(t *testing.T) {
	defs := &monitor.Definitions{Monitors: []monitor.Definition{
		{Name: "a", Command: "true", Repeat: "30s"},
		{Name: "b", Command: "true", Cron: "@hourly"},
	}}
	forceOnce(defs)
	for _, d := range defs.Monitors {
		assert.Equal(t, monitor.RepeatOnce, d.Repeat)
		assert.Empty(t, d.Cron)
	}
}

func TestCollectResults(t *testing.T) {
	results := make(chan monitor.Result, 3)
	results <- monitor.Result{Monitor: "a", Status: monitor.StatusOK}
	results <- monitor.Result{Monitor: "b", Status: monitor.StatusFailed, Completion: rscqueue.Completion{ExitCode: 2}}
	results <- monitor.Result{Monitor: "c", Status: monitor.StatusFailed, Completion: rscqueue.Completion{TimedOut: true}}

	failed, err := collectResults(context.Background(), results, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, failed)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = collectResults(ctx, make(chan monitor.Result), 1)
	assert.Error(t, err)
}
