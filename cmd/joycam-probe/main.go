// joycam-probe reads a joycam stream and reports frame rate and capture
// latency. It can also send one control record.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-joycam/internal/log"
	"github.com/teslashibe/go-joycam/pkg/client"
	"github.com/teslashibe/go-joycam/pkg/control"
)

func main() {
	host := flag.String("host", "localhost", "Device host")
	indexPort := flag.Int("index-port", 80, "Control port")
	streamPort := flag.Int("stream-port", 81, "Stream port")
	frames := flag.Int("frames", 0, "Stop after this many frames (0 = until interrupted)")
	save := flag.String("save", "", "Write the last frame to this file")
	send := flag.String("send", "", "Send a control record x1,y1,x2,y2 and exit")
	debug := flag.Bool("debug", false, "Log every frame")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level, "text")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *send != "" {
		var x1, y1, x2, y2 int64
		if _, err := fmt.Sscanf(*send, "%d,%d,%d,%d", &x1, &y1, &x2, &y2); err != nil {
			log.Error("bad -send value, want x1,y1,x2,y2", "value", *send)
			os.Exit(2)
		}
		p := control.NewPosition(x1, y1, x2, y2)
		url := fmt.Sprintf("http://%s:%d/cmd", *host, *indexPort)
		if err := client.PostControl(ctx, url, p); err != nil {
			log.Error("control post failed", "url", url, "error", err)
			os.Exit(1)
		}
		log.Info("control accepted", "position", p.String())
		return
	}

	url := fmt.Sprintf("http://%s:%d/stream", *host, *streamPort)
	if err := probe(ctx, url, *frames, *save); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("probe failed", "url", url, "error", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, url string, limit int, save string) error {
	stream, err := client.OpenStream(ctx, url)
	if err != nil {
		return err
	}
	defer stream.Close()
	log.Info("stream connected", "url", url, "boundary", stream.Boundary)

	var (
		count      int
		total      int
		windowN    int
		windowFrom = time.Now()
		last       *client.Frame
	)
	for limit == 0 || count < limit {
		f, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("stream ended by server")
				break
			}
			if ctx.Err() != nil {
				break
			}
			return err
		}
		count++
		windowN++
		total += len(f.Data)
		last = f

		var latency time.Duration
		if !f.Captured.IsZero() {
			latency = f.Received.Sub(f.Captured)
		}
		log.Debug("frame", "n", count, "bytes", len(f.Data), "latency", latency)

		if elapsed := time.Since(windowFrom); elapsed >= time.Second {
			log.Info("stream rate",
				"fps", fmt.Sprintf("%.1f", float64(windowN)/elapsed.Seconds()),
				"frames", count,
				"avg_bytes", total/count,
				"latency", latency,
			)
			windowN = 0
			windowFrom = time.Now()
		}
	}

	log.Info("probe done", "frames", count, "bytes", total)
	if save != "" && last != nil {
		if err := os.WriteFile(save, last.Data, 0o644); err != nil {
			return fmt.Errorf("save frame: %w", err)
		}
		log.Info("saved last frame", "path", save)
	}
	return nil
}
