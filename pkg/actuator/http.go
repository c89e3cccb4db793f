package actuator

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/teslashibe/go-joycam/internal/httpc"
	"github.com/teslashibe/go-joycam/pkg/control"
)

// HTTPDriver POSTs each position as JSON to a motor controller endpoint.
type HTTPDriver struct {
	URL string
}

// NewHTTPDriver creates an HTTPDriver for an absolute http(s) URL.
func NewHTTPDriver(rawURL string) (*HTTPDriver, error) {
	if rawURL == "" {
		return nil, errors.New("actuator http url is empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("actuator http url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("actuator http url: unsupported scheme %q", u.Scheme)
	}
	return &HTTPDriver{URL: rawURL}, nil
}

func (d *HTTPDriver) Name() string { return "http" }

func (d *HTTPDriver) Send(ctx context.Context, p control.Position) error {
	if _, err := httpc.PostJSON(ctx, d.URL, p); err != nil {
		return fmt.Errorf("post position: %w", err)
	}
	return nil
}

func (d *HTTPDriver) Close() error { return nil }
