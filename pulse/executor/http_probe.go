package executor

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/internal/httpclient"
	"github.com/teranos/nanoprobe/pulse/rscqueue"
)

// HTTPProbeOptions configures an HTTP probe
type HTTPProbeOptions struct {
	Method       string        // GET or HEAD (default: GET)
	ExpectStatus int           // 0 = any 2xx
	Timeout      time.Duration // 0 = client timeout only
	MaxOutput    int           // Bytes of body kept (default: 64 KiB)
	Client       *httpclient.SaferClient
}

// HTTPProbe checks a URL. Exit code 0 means the expected status came back,
// 1 means another status did, and Other/-1 means no response at all.
type HTTPProbe struct {
	rscqueue.BaseCommand
	url  string
	opts HTTPProbeOptions
}

// NewHTTPProbe validates rawURL against the client's SSRF rules up front
func NewHTTPProbe(resource, rawURL string, opts HTTPProbeOptions) (*HTTPProbe, error) {
	if opts.Client == nil {
		return nil, errors.New("http probe requires a client")
	}
	switch strings.ToUpper(opts.Method) {
	case "":
		opts.Method = http.MethodGet
	case http.MethodGet, http.MethodHead:
		opts.Method = strings.ToUpper(opts.Method)
	default:
		return nil, errors.Newf("unsupported probe method %q", opts.Method)
	}
	if opts.ExpectStatus != 0 && (opts.ExpectStatus < 100 || opts.ExpectStatus > 599) {
		return nil, errors.Newf("expect_status %d is not an HTTP status", opts.ExpectStatus)
	}
	if _, err := opts.Client.ValidateURL(rawURL); err != nil {
		return nil, errors.Wrapf(err, "probe URL %s rejected", rawURL)
	}

	return &HTTPProbe{
		BaseCommand: rscqueue.NewBaseCommand(resource),
		url:         rawURL,
		opts:        opts,
	}, nil
}

// String returns "METHOD url"
func (h *HTTPProbe) String() string {
	return h.opts.Method + " " + h.url
}

// Execute sends the request on its own goroutine
func (h *HTTPProbe) Execute(ctx context.Context, n rscqueue.Notifier) {
	h.Begin()
	url, opts := h.url, h.opts
	go func() {
		n.Notify(h, probe(ctx, url, opts))
	}()
}

func probe(ctx context.Context, url string, opts HTTPProbeOptions) rscqueue.Completion {
	start := time.Now()

	reqCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	failed := func(err error) rscqueue.Completion {
		return rscqueue.Completion{
			How:      rscqueue.Other,
			ExitCode: -1,
			Output:   err.Error(),
			TimedOut: errors.Is(reqCtx.Err(), context.DeadlineExceeded),
			Duration: time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(reqCtx, opts.Method, url, nil)
	if err != nil {
		return failed(errors.Wrap(err, "failed to build probe request"))
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()

	out := newCappedBuffer(opts.MaxOutput)
	out.Write([]byte(resp.Status + "\n"))
	if _, err := io.Copy(out, resp.Body); err != nil {
		return failed(errors.Wrap(err, "failed to read probe response"))
	}

	c := rscqueue.Completion{
		How:      rscqueue.Exited,
		Output:   out.String(),
		Duration: time.Since(start),
	}
	if !statusMatches(resp.StatusCode, opts.ExpectStatus) {
		c.ExitCode = 1
	}
	return c
}

func statusMatches(got, want int) bool {
	if want == 0 {
		return got >= 200 && got < 300
	}
	return got == want
}
