package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/epiransac/epipolar"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *epipolar.ServiceConfig
	Tracker    *epipolar.ResultTracker
	MQTTClient *epipolar.MQTTClient
	Publisher  *epipolar.Publisher
	Out        io.Writer // One-shot results are written here

	opts AppOptions
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Tracker: epipolar.NewResultTracker(),
		Out:     os.Stdout,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist, then applies flag overrides
func (a *App) loadConfig() (*epipolar.ServiceConfig, error) {
	path := a.opts.ConfigFile
	var cfg *epipolar.ServiceConfig
	if _, err := os.Stat(path); path == "" || (errors.Is(err, os.ErrNotExist) && path == "config.yaml") {
		cfg = epipolar.DefaultServiceConfig()
	} else {
		loaded, err := epipolar.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		log.Printf("Loaded config from %s", path)
	}

	if a.opts.SeedSet {
		seed := a.opts.Seed
		cfg.RANSAC.Seed = &seed
	}
	if a.opts.Workers > 0 {
		cfg.RANSAC.Workers = a.opts.Workers
	}
	if a.opts.HttpPort > 0 {
		cfg.HTTP.Port = a.opts.HttpPort
	}
	a.Config = cfg
	return cfg, nil
}

// estimateOutput is the JSON printed by RunEstimate
type estimateOutput struct {
	ID         string                    `json:"id"`
	Result     epipolar.Result           `json:"result"`
	Inliers    []epipolar.Correspondence `json:"inlierMatches"`
	DurationMs float64                   `json:"durationMs"`
}

// RunEstimate estimates once from the --input file and prints the result
func (a *App) RunEstimate() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	req, err := epipolar.ParseRequestFile(a.opts.InputFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", a.opts.InputFile, err)
	}
	if req.ID == "" {
		req.ID = strings.TrimSuffix(filepath.Base(a.opts.InputFile), filepath.Ext(a.opts.InputFile))
	}

	tr, err := epipolar.Process(context.Background(), req, cfg.RANSAC)
	if err != nil {
		return err
	}
	a.Tracker.Put(tr)
	log.Printf("%s: %d/%d inliers after %d trials (%s) in %v",
		tr.ID, tr.Result.InlierCount, tr.Result.Total, tr.Result.Trials, tr.Result.Status, tr.Duration)

	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(estimateOutput{
		ID:         tr.ID,
		Result:     tr.Result,
		Inliers:    tr.Inliers,
		DurationMs: float64(tr.Duration) / float64(time.Millisecond),
	}); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if a.opts.OverlayFile != "" {
		if err := writeOverlay(a.opts.OverlayFile, tr); err != nil {
			return err
		}
		log.Printf("Wrote overlay to %s", a.opts.OverlayFile)
	}
	return nil
}

// writeOverlay picks the overlay format from the file extension
func writeOverlay(path string, tr *epipolar.TrackedResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating overlay: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		err = epipolar.NewVectorOverlayRenderer(tr).RenderToSVG(f)
	case ".png":
		err = png.Encode(f, epipolar.NewOverlayRenderer(tr).Render())
	case ".geojson", ".json":
		err = json.NewEncoder(f).Encode(epipolar.ResultFeatureCollection(tr, -1))
	default:
		return fmt.Errorf("unsupported overlay format %q (want .svg, .png or .geojson)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("writing overlay: %w", err)
	}
	return f.Close()
}

// RunWriteConfig writes the default configuration
func (a *App) RunWriteConfig(path string) error {
	if err := epipolar.SaveConfig(path, epipolar.DefaultServiceConfig()); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Wrote default configuration to %s\n", path)
	return nil
}

// handleRequest estimates one request received over MQTT and publishes it
func (a *App) handleRequest(topic string, req *epipolar.Request, err error) {
	if err != nil {
		log.Printf("Dropping request from %s: %v", topic, err)
		return
	}
	if req.ID == "" {
		req.ID = a.Tracker.NextID()
	}

	tr, err := epipolar.Process(context.Background(), req, a.Config.RANSAC)
	if err != nil {
		log.Printf("Estimation failed for %s: %v", req.ID, err)
		return
	}
	a.Tracker.Put(tr)
	log.Printf("%s: %d/%d inliers after %d trials (%s)",
		tr.ID, tr.Result.InlierCount, tr.Result.Total, tr.Result.Trials, tr.Result.Status)

	if a.Publisher != nil {
		if err := a.Publisher.PublishResult(tr); err != nil {
			log.Printf("Error publishing result for %s: %v", tr.ID, err)
		}
	}
}

// RunService runs MQTT and/or HTTP until interrupted
func (a *App) RunService() error {
	fmt.Println("Starting epiransac service...")

	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if a.opts.MqttMode {
		mqttClient, err := epipolar.InitMQTT(cfg, a.handleRequest)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if mqttClient == nil {
			return fmt.Errorf("MQTT broker not configured (set mqtt.broker or MQTT_BROKER)")
		}
		a.MQTTClient = mqttClient
		a.Publisher = epipolar.NewPublisher(mqttClient.GetClient(), cfg.MQTT.PublishPrefix)
		fmt.Println("MQTT result publisher initialized")
	}

	if a.opts.HttpMode {
		handler := newHTTPServer(a.Tracker, cfg.RANSAC)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", cfg.HTTP.Port)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, handler); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	fmt.Println("\nService Running")
	fmt.Println("===============")
	if a.opts.MqttMode {
		prefix := cfg.MQTT.PublishPrefix
		if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
			prefix = env
		}
		fmt.Println("\nMQTT:")
		fmt.Printf("  Request topic: %s\n", cfg.MQTT.RequestTopic)
		fmt.Printf("  Publishing to: %s/{id}/result\n", prefix)
		fmt.Printf("  Summary: %s/results\n", prefix)
	}
	if a.opts.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", cfg.HTTP.Port)
		fmt.Println("  GET  /health                    - Health check")
		fmt.Println("  POST /estimate                  - Estimate from a request body")
		fmt.Println("  POST /homography                - Direct homography fit and panorama canvas")
		fmt.Println("  GET  /results                   - Tracked result summaries")
		fmt.Println("  GET  /results/{id}              - Full result")
		fmt.Println("  GET  /results/{id}/overlay.svg  - Vector overlay")
		fmt.Println("  GET  /results/{id}/overlay.png  - Raster overlay")
		fmt.Println("  GET  /results/{id}/lines.geojson - Inliers and epipolar lines")
		fmt.Println("  GET  /epipolar-line?id=&x=&y=&view= - One epipolar line")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Println("Service stopped")
	return nil
}
