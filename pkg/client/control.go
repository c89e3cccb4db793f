package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/go-joycam/internal/httpc"
	"github.com/teslashibe/go-joycam/pkg/control"
)

// PostControl sends p to the control endpoint at url and checks the
// acknowledgement.
func PostControl(ctx context.Context, url string, p control.Position) error {
	body, err := httpc.PostJSON(ctx, url, p)
	if err != nil {
		return err
	}
	if got := strings.TrimSpace(string(body)); got != control.Ack {
		return fmt.Errorf("unexpected control response %q", got)
	}
	return nil
}
