package logger

import (
	"go.uber.org/zap"

	"github.com/teranos/nanoprobe/sym"
)

// The subsystem glyph travels in the "symbol" field, never in the message text.

// WithSymbol tags every entry written through l with glyph
func WithSymbol(l *zap.SugaredLogger, glyph string) *zap.SugaredLogger {
	return l.With(FieldSymbol, glyph)
}

// AddPulseSymbol tags queue and reactor logs (꩜)
func AddPulseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return WithSymbol(l, sym.Pulse)
}

// AddProbeSymbol tags monitor results (⌁)
func AddProbeSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return WithSymbol(l, sym.Probe)
}

// AddDBSymbol tags history storage logs (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return WithSymbol(l, sym.DB)
}

// SymbolInfow writes an info entry tagged with glyph to the global logger
func SymbolInfow(glyph, msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, prependSymbol(glyph, keysAndValues)...)
	}
}

// SymbolWarnw writes a warning tagged with glyph to the global logger
func SymbolWarnw(glyph, msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, prependSymbol(glyph, keysAndValues)...)
	}
}

func prependSymbol(glyph string, keysAndValues []interface{}) []interface{} {
	out := make([]interface{}, 0, len(keysAndValues)+2)
	out = append(out, FieldSymbol, glyph)
	return append(out, keysAndValues...)
}
