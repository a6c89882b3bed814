package source

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
	"github.com/pulsewatch/pulsewatch/monitor/internal/config"
)

// maxBodyBytes caps how much of a response body a source will read.
const maxBodyBytes = 8 << 20

// Source is the common interface implemented by every snapshot source.
type Source interface {
	// ID returns the configured source identifier.
	ID() string

	// Fetch returns the current snapshot. The snapshot is not validated.
	Fetch(ctx context.Context) (*compute.Snapshot, error)
}

// New returns the appropriate Source for the given source configuration.
// HTTP sources build their client once and reuse it across fetches; the
// per-fetch deadline comes from ctx.
func New(src config.Source) (Source, error) {
	switch src.Type {
	case config.SourceBackend:
		return &backendSource{src: src, client: buildHTTPClient(src)}, nil
	case config.SourcePrometheus:
		return &promSource{src: src, client: buildHTTPClient(src)}, nil
	case config.SourceFile:
		return &fileSource{src: src}, nil
	default:
		return nil, fmt.Errorf("source %q: unsupported type %q", src.ID, src.Type)
	}
}

// NewAll builds one Source per entry of srcs, in order.
func NewAll(srcs []config.Source) ([]Source, error) {
	out := make([]Source, 0, len(srcs))
	for _, sc := range srcs {
		s, err := New(sc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

func buildHTTPClient(src config.Source) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	return &http.Client{Transport: &authRoundTripper{base: base, auth: src.Auth}}
}

// get performs an HTTP GET and returns the body of a 2xx response.
// The caller must close the returned body.
func get(ctx context.Context, client *http.Client, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// getJSON GETs url and decodes the JSON body into v.
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	body, err := get(ctx, client, url, "application/json")
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// fetchMetrics GETs url and returns the parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	body, err := get(ctx, client, url, string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return parseMetrics(io.LimitReader(body, maxBodyBytes))
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}
