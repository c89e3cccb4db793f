// joycam serves a live MJPEG camera stream and a joystick control page.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-joycam/internal/config"
	"github.com/teslashibe/go-joycam/internal/log"
	"github.com/teslashibe/go-joycam/pkg/joycam"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}

	level := cfg.Logging.Level
	if cfg.Debug {
		level = "debug"
	}
	log.Init(level, cfg.Logging.Format)

	app, err := joycam.New(cfg, log.L())
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	log.Info("joycam starting",
		"version", joycam.Version,
		"index", cfg.Server.IndexAddr,
		"stream", cfg.Server.StreamAddr,
		"camera", cfg.Camera.Source,
		"actuator", cfg.Actuator.Driver,
	)
	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
	log.Info("goodbye")
}

// parseFlags loads the config file, applies env overrides, then flags.
func parseFlags() (config.Config, error) {
	configPath := flag.String("config", os.Getenv("JOYCAM_CONFIG"), "Path to a YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging and the access log")
	indexAddr := flag.String("index-addr", "", "Listen address for the page and control endpoint")
	streamAddr := flag.String("stream-addr", "", "Listen address for the MJPEG stream")
	source := flag.String("camera", "", "Camera source: pattern, dir, gocv")
	dir := flag.String("frames", "", "Directory of JPEG frames for the dir source")
	preset := flag.String("preset", "", "Camera preset: qvga, vga, svga, hd, uxga")
	driver := flag.String("actuator", "", "Actuator driver: log, http, mqtt, none")
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	cfg.LoadEnvConfig()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = *debug
		case "index-addr":
			cfg.Server.IndexAddr = *indexAddr
		case "stream-addr":
			cfg.Server.StreamAddr = *streamAddr
		case "camera":
			cfg.Camera.Source = *source
		case "frames":
			cfg.Camera.Dir = *dir
		case "preset":
			cfg.Camera.Preset = *preset
		case "actuator":
			cfg.Actuator.Driver = *driver
		case "log-format":
			cfg.Logging.Format = *logFormat
		}
	})
	return cfg, nil
}
