package monitor

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/nanoprobe/am"
	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/internal/httpclient"
	"github.com/teranos/nanoprobe/internal/util"
	"github.com/teranos/nanoprobe/pulse/executor"
)

// Deps are the shared collaborators monitors are built with
type Deps struct {
	Config    *am.Config
	Spawner   *executor.Spawner      // Shared by every process monitor; nil = unthrottled
	Client    *httpclient.SaferClient // Shared by every http monitor; nil = built from Config.Probe
	Publisher Publisher
	Clock     func() time.Time
	Logger    *zap.SugaredLogger
}

// Build turns validated definitions into monitors. Missing repeat and timeout values
// come from the [monitoring] section, per agent kind.
func Build(defs *Definitions, deps Deps) ([]*Monitor, error) {
	cfg := deps.Config
	if cfg == nil {
		cfg = &am.Config{}
	}
	backoff, maxBackoff := cfg.Backoff()

	client := deps.Client
	if client == nil {
		client = ProbeClient(cfg)
	}

	monitors := make([]*Monitor, 0, len(defs.Monitors))
	for i := range defs.Monitors {
		def := defs.Monitors[i]
		if err := def.normalize(); err != nil {
			return nil, err
		}

		sched, err := def.schedule(cfg.RepeatFor(def.Kind))
		if err != nil {
			return nil, err
		}
		timeout, err := def.timeout(cfg.TimeoutFor(def.Kind))
		if err != nil {
			return nil, err
		}

		var cmd Command
		switch def.Kind {
		case KindProcess:
			cmd, err = executor.NewProcessCommand(def.Resource, def.Command, executor.ProcessOptions{
				Timeout:   timeout,
				MaxOutput: cfg.MaxOutput(),
				Env:       envList(def.Env),
				Dir:       def.Dir,
				Spawner:   deps.Spawner,
			})
		case KindHTTP:
			cmd, err = executor.NewHTTPProbe(def.Resource, def.URL, executor.HTTPProbeOptions{
				Method:       def.Method,
				ExpectStatus: def.ExpectStatus,
				Timeout:      timeout,
				MaxOutput:    cfg.MaxOutput(),
				Client:       client,
			})
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "monitor %q", def.Name), errors.ErrInvalidDefinition)
		}

		monitors = append(monitors, New(def.Name, cmd, Options{
			Schedule:     sched,
			RetryBackoff: backoff,
			MaxBackoff:   maxBackoff,
			Clock:        deps.Clock,
			Publisher:    deps.Publisher,
			Logger:       deps.Logger,
		}))
	}
	return monitors, nil
}

// ProbeClient builds the http client for probes from [probe]
func ProbeClient(cfg *am.Config) *httpclient.SaferClient {
	opts := httpclient.SaferClientOptions{
		BlockPrivateIP: util.Ptr(cfg.Probe.BlockPrivateIP),
	}
	if cfg.Probe.MaxRedirects > 0 {
		opts.MaxRedirects = util.Ptr(cfg.Probe.MaxRedirects)
	}
	// Per-request timeouts come from each monitor
	return httpclient.NewSaferClientWithOptions(0, opts)
}

// envList renders env in a stable order
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}
