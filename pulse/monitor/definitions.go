package monitor

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/version"
)

// Agent kinds
const (
	KindProcess = "process"
	KindHTTP    = "http"
)

// RepeatOnce as a repeat value runs the check a single time
const RepeatOnce = "once"

// Definitions is the monitor definitions file
//
//	agent_version = ">= 0.3"
//
//	[[monitor]]
//	name = "sshd"
//	command = "systemctl is-active sshd"
//	repeat = "30s"
//
//	[[monitor]]
//	name = "api"
//	resource = "api.local"
//	kind = "http"
//	url = "http://127.0.0.1:8080/healthz"
//	cron = "*/5 * * * *"
type Definitions struct {
	AgentVersion string       `toml:"agent_version" yaml:"agent_version"`
	Monitors     []Definition `toml:"monitor" yaml:"monitor"`

	path string
}

// Definition describes one monitor. Durations use Go syntax ("30s", "5m").
type Definition struct {
	Name         string            `toml:"name" yaml:"name"`
	Resource     string            `toml:"resource" yaml:"resource"` // Default: name
	Kind         string            `toml:"kind" yaml:"kind"`         // process | http, inferred from command/url
	Command      string            `toml:"command" yaml:"command"`
	URL          string            `toml:"url" yaml:"url"`
	Method       string            `toml:"method" yaml:"method"`
	ExpectStatus int               `toml:"expect_status" yaml:"expect_status"`
	Repeat       string            `toml:"repeat" yaml:"repeat"` // Duration or "once"; empty = config default
	Cron         string            `toml:"cron" yaml:"cron"`
	Timeout      string            `toml:"timeout" yaml:"timeout"` // Empty = config default
	Env          map[string]string `toml:"env" yaml:"env"`
	Dir          string            `toml:"dir" yaml:"dir"`
}

// Path returns the file the definitions were loaded from, if any
func (d *Definitions) Path() string { return d.path }

// LoadDefinitions reads a TOML or YAML definitions file and validates it against this build
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read definitions file %s", path)
	}

	defs, err := ParseDefinitions(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.WithDetailf(err, "File: %s", path)
	}
	defs.path = path

	if err := defs.Validate(version.Get()); err != nil {
		return nil, errors.WithDetailf(err, "File: %s", path)
	}
	return defs, nil
}

// ParseDefinitions decodes data by file extension (.toml, .yaml, .yml). Unknown keys are errors.
func ParseDefinitions(data []byte, ext string) (*Definitions, error) {
	var defs Definitions

	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &defs)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse TOML definitions")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.WithHint(
				errors.Newf("unknown key %q in definitions", undecoded[0].String()),
				"check spelling against the [[monitor]] fields: name, resource, kind, command, url, method, expect_status, repeat, cron, timeout, env, dir",
			)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&defs); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "failed to parse YAML definitions")
		}
	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported definitions format %q", ext),
			"use a .toml, .yaml or .yml file",
		)
	}

	return &defs, nil
}

// Validate checks the agent version constraint and every monitor entry
func (d *Definitions) Validate(build version.Info) error {
	if err := build.Satisfies(d.AgentVersion); err != nil {
		return errors.WithHint(err, "upgrade nanoprobe or relax agent_version in the definitions file")
	}

	seen := make(map[string]bool, len(d.Monitors))
	for i := range d.Monitors {
		def := &d.Monitors[i]
		if err := def.normalize(); err != nil {
			return errors.WithDetailf(err, "Monitor: #%d %s", i+1, def.Name)
		}
		if seen[def.Name] {
			return errors.WithHint(
				errors.NewInvalidDefinitionError("duplicate monitor name %q", def.Name),
				"monitor names must be unique; use resource to share a resource between monitors",
			)
		}
		seen[def.Name] = true
	}
	return nil
}

// normalize fills inferred fields and rejects entries that cannot become a command
func (def *Definition) normalize() error {
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return errors.WithHint(
			errors.NewInvalidDefinitionError("monitor has no name"),
			"add name = \"...\" to every [[monitor]] entry",
		)
	}
	if def.Resource == "" {
		def.Resource = def.Name
	}

	if def.Kind == "" {
		switch {
		case def.URL != "":
			def.Kind = KindHTTP
		default:
			def.Kind = KindProcess
		}
	}

	switch def.Kind {
	case KindProcess:
		if strings.TrimSpace(def.Command) == "" {
			return errors.WithHint(
				errors.NewInvalidDefinitionError("monitor %q has no command", def.Name),
				"process monitors need command = \"...\"",
			)
		}
		if def.URL != "" {
			return errors.NewInvalidDefinitionError("monitor %q sets both command and url", def.Name)
		}
	case KindHTTP:
		if def.URL == "" {
			return errors.WithHint(
				errors.NewInvalidDefinitionError("monitor %q has no url", def.Name),
				"http monitors need url = \"http://...\"",
			)
		}
		if def.Command != "" {
			return errors.NewInvalidDefinitionError("monitor %q sets both command and url", def.Name)
		}
	default:
		return errors.WithHint(
			errors.NewInvalidDefinitionError("monitor %q has unknown kind %q", def.Name, def.Kind),
			"kind must be \"process\" or \"http\"",
		)
	}

	if def.Repeat != "" && def.Cron != "" {
		return errors.NewInvalidDefinitionError("monitor %q sets both repeat and cron", def.Name)
	}
	if _, err := def.schedule(time.Minute); err != nil {
		return err
	}
	if _, err := def.timeout(0); err != nil {
		return err
	}
	if def.ExpectStatus != 0 && (def.ExpectStatus < 100 || def.ExpectStatus > 599) {
		return errors.NewInvalidDefinitionError("monitor %q: expect_status %d is not an HTTP status", def.Name, def.ExpectStatus)
	}
	return nil
}

// schedule resolves repeat/cron, falling back to every fallback
func (def *Definition) schedule(fallback time.Duration) (Schedule, error) {
	switch {
	case def.Cron != "":
		s, err := Cron(def.Cron)
		if err != nil {
			return nil, errors.Mark(errors.WithHint(err, "cron uses five fields: minute hour day month weekday"), errors.ErrInvalidDefinition)
		}
		return s, nil
	case strings.EqualFold(def.Repeat, RepeatOnce):
		return Once(), nil
	case def.Repeat != "":
		d, err := time.ParseDuration(def.Repeat)
		if err != nil || d <= 0 {
			return nil, errors.WithHint(
				errors.NewInvalidDefinitionError("monitor %q: invalid repeat %q", def.Name, def.Repeat),
				"repeat is a positive duration like \"30s\" or \"once\"",
			)
		}
		return Every(d), nil
	default:
		return Every(fallback), nil
	}
}

func (def *Definition) timeout(fallback time.Duration) (time.Duration, error) {
	if def.Timeout == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(def.Timeout)
	if err != nil || d < 0 {
		return 0, errors.WithHint(
			errors.NewInvalidDefinitionError("monitor %q: invalid timeout %q", def.Name, def.Timeout),
			"timeout is a duration like \"10s\"; \"0s\" disables it",
		)
	}
	return d, nil
}
