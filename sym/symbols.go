// Package sym defines canonical symbols for nanoprobe subsystems.
// These glyphs are stable across log output and CLI text so that logs
// can be filtered by the "symbol" field.
package sym

// Subsystem glyphs.
const (
	Pulse      = "꩜" // resource queue ticks and command dispatch
	PulseOpen  = "✿" // startup of the reactor and its collaborators
	PulseClose = "❀" // graceful shutdown
	AM         = "≡" // configuration
	Probe      = "⌁" // monitor results (process and http probes)
	DB         = "⊔" // execution history storage
)

// entry binds a glyph to a short command name and description.
type entry struct {
	glyph       string
	command     string
	description string
}

var registry = []entry{
	{Pulse, "pulse", "Resource queue ticks and command dispatch"},
	{PulseOpen, "", "Reactor startup"},
	{PulseClose, "", "Reactor shutdown"},
	{AM, "am", "Configuration and system settings"},
	{Probe, "probe", "Monitor results"},
	{DB, "history", "Execution history storage"},
}

// SymbolToCommand maps glyph strings to their CLI command equivalents.
var SymbolToCommand = map[string]string{}

// CommandToSymbol maps CLI commands to their canonical glyph strings.
var CommandToSymbol = map[string]string{}

var descriptions = map[string]string{}

func init() {
	for _, e := range registry {
		descriptions[e.glyph] = e.description
		if e.command == "" {
			continue
		}
		SymbolToCommand[e.glyph] = e.command
		CommandToSymbol[e.command] = e.glyph
	}
}

// Describe returns the description for a glyph, or "" if unknown.
func Describe(glyph string) string {
	return descriptions[glyph]
}
