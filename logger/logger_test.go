package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/nanoprobe/sym"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{name: "JSON output mode", jsonOutput: true},
		{name: "Console output mode", jsonOutput: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			require.NoError(t, Initialize(tt.jsonOutput))
			assert.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)

			Cleanup()
			Logger = zap.NewNop().Sugar()
		})
	}
}

func TestInitializeWithLevel(t *testing.T) {
	require.NoError(t, InitializeWithLevel(false, zapcore.WarnLevel))
	defer func() { Logger = zap.NewNop().Sugar() }()

	assert.False(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.WarnLevel))
}

// newObservedLogger swaps the global logger for one that records entries
func newObservedLogger(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger
	Logger = zap.New(core).Sugar()
	t.Cleanup(func() { Logger = prev })
	return logs
}

func TestLoggingFunctions(t *testing.T) {
	t.Run("helpers reach the global logger", func(t *testing.T) {
		logs := newObservedLogger(t)

		Info("info")
		Infof("info %d", 1)
		Infow("info w", FieldResource, "nic0")
		Warn("warn")
		Warnf("warn %d", 1)
		Warnw("warn w")
		Error("error")
		Errorf("error %d", 1)
		Errorw("error w")
		Debug("debug")
		Debugf("debug %d", 1)
		Debugw("debug w")

		assert.Equal(t, 12, logs.Len())
		entry := logs.FilterMessage("info w").All()
		require.Len(t, entry, 1)
		assert.Equal(t, "nic0", entry[0].ContextMap()[FieldResource])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		prev := Logger
		Logger = nil
		defer func() { Logger = prev }()

		assert.NotPanics(t, func() {
			Info("x")
			Infow("x")
			Errorw("x")
			Warnw("x")
			Debugw("x")
			SymbolInfow(sym.Pulse, "x")
			SymbolWarnw(sym.Pulse, "x")
			Cleanup()
		})
	})
}

func TestSymbolHelpers(t *testing.T) {
	logs := newObservedLogger(t)

	SymbolInfow(sym.Pulse, "tick", FieldCount, 2)
	SymbolWarnw(sym.AM, "watch disabled")
	AddProbeSymbol(Logger).Infow("probe")
	AddDBSymbol(Logger).Debugw("stored")
	WithSymbol(Logger, sym.PulseClose).Infow("stopped")

	all := logs.All()
	require.Len(t, all, 5)
	assert.Equal(t, sym.Pulse, all[0].ContextMap()[FieldSymbol])
	assert.EqualValues(t, 2, all[0].ContextMap()[FieldCount])
	assert.Equal(t, zapcore.WarnLevel, all[1].Level)
	assert.Equal(t, sym.AM, all[1].ContextMap()[FieldSymbol])
	assert.Equal(t, sym.Probe, all[2].ContextMap()[FieldSymbol])
	assert.Equal(t, sym.DB, all[3].ContextMap()[FieldSymbol])
	assert.Equal(t, sym.PulseClose, all[4].ContextMap()[FieldSymbol])
}

func TestFieldsFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FieldsFromContext(ctx))

	ctx = WithResource(ctx, "nic0")
	ctx = WithComponent(ctx, "monitor")
	fields := FieldsFromContext(ctx)
	assert.Equal(t, []interface{}{FieldResource, "nic0", FieldComponent, "monitor"}, fields)
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
		name      string
	}{
		{-1, zapcore.WarnLevel, "quiet"},
		{0, zapcore.WarnLevel, "quiet"},
		{1, zapcore.InfoLevel, "info (-v)"},
		{2, zapcore.DebugLevel, "debug (-vv)"},
		{5, zapcore.DebugLevel, "debug (-vv)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerbosityToLevel(tt.verbosity), "verbosity %d", tt.verbosity)
		assert.Equal(t, tt.name, LevelName(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}
