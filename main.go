package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile  string
	InputFile   string
	OverlayFile string
	WriteConfig string
	Seed        int64
	SeedSet     bool
	Workers     int
	MqttMode    bool
	HttpMode    bool
	HttpPort    int
}

// Application is what run drives; App implements it
type Application interface {
	ApplyOptions(opts AppOptions)
	RunEstimate() error
	RunService() error
	RunWriteConfig(path string) error
}

func main() {
	if err := run(os.Args[1:], os.Stderr, NewApp()); err != nil {
		if err == flag.ErrHelp {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

// parseOptions parses args into AppOptions; usage and errors go to out
func parseOptions(args []string, out io.Writer) (AppOptions, error) {
	var opts AppOptions

	fs := flag.NewFlagSet("epiransac", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file (missing file means defaults)")
	fs.StringVar(&opts.InputFile, "input", "", "Request JSON file: estimate once and print the result as JSON")
	fs.StringVar(&opts.OverlayFile, "overlay", "", "Write a diagnostic overlay for --input (.svg, .png or .geojson)")
	fs.StringVar(&opts.WriteConfig, "write-config", "", "Write the default configuration to this path and exit")
	fs.Int64Var(&opts.Seed, "seed", 0, "Fixed PRNG seed (overrides ransac.seed)")
	fs.IntVar(&opts.Workers, "workers", 0, "Parallel RANSAC workers (overrides ransac.workers)")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server")
	fs.IntVar(&opts.HttpPort, "http-port", 0, "HTTP server port (overrides http.port, default 8080)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.SeedSet = true
		}
	})
	return opts, nil
}

// run parses args, applies them to app and dispatches to one mode
func run(args []string, out io.Writer, app Application) error {
	opts, err := parseOptions(args, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "epiransac version: %s\n", Version)

	app.ApplyOptions(opts)

	switch {
	case opts.WriteConfig != "":
		return app.RunWriteConfig(opts.WriteConfig)
	case opts.InputFile != "":
		return app.RunEstimate()
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	}

	fmt.Fprintln(out, "Use --input=request.json to estimate a fundamental matrix once")
	fmt.Fprintln(out, "Use --overlay=out.svg with --input to draw inliers and epipolar lines")
	fmt.Fprintln(out, "Use --mqtt to serve requests from the MQTT request topic")
	fmt.Fprintln(out, "Use --http to serve the HTTP API")
	fmt.Fprintln(out, "Use --write-config=config.yaml to write the default configuration")
	return nil
}
