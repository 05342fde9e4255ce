package logger

import "go.uber.org/zap/zapcore"

// Counts of the -v flag
const (
	VerbosityQuiet = 0 // failures, warnings and errors
	VerbosityInfo  = 1 // -v: startup, first results, recoveries
	VerbosityDebug = 2 // -vv: every start, completion and tick
)

var verbosityLevels = [...]struct {
	level zapcore.Level
	name  string
}{
	VerbosityQuiet: {zapcore.WarnLevel, "quiet"},
	VerbosityInfo:  {zapcore.InfoLevel, "info (-v)"},
	VerbosityDebug: {zapcore.DebugLevel, "debug (-vv)"},
}

// VerbosityToLevel maps a -v count to a zap level. Counts past -vv stay at debug.
func VerbosityToLevel(verbosity int) zapcore.Level {
	return verbosityLevels[clampVerbosity(verbosity)].level
}

// LevelName names the level a -v count selects
func LevelName(verbosity int) string {
	return verbosityLevels[clampVerbosity(verbosity)].name
}

func clampVerbosity(v int) int {
	switch {
	case v < VerbosityQuiet:
		return VerbosityQuiet
	case v > VerbosityDebug:
		return VerbosityDebug
	}
	return v
}
