// Command jtl-forward replays JMeter CSV results files through the telemetry listener,
// forwarding every sample as a metric to the ingestion API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	flagEndpoint        = "endpoint"
	flagLicenseKey      = "license-key"
	flagTestName        = "test-name"
	flagBatchSize       = "batch-size"
	flagSamplers        = "samplers"
	flagSamplersRegex   = "samplers-regex"
	flagResponseHeaders = "response-headers"
	flagProperty        = "property"
	flagChunkSize       = "chunk-size"
	flagLogLevel        = "log-level"
	flagLogJSON         = "log-json"
	flagMetricsAddr     = "metrics-addr"
	flagInsecure        = "insecure"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("Failed to forward results")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "jtl-forward",
		Usage:     "Forward JMeter CSV results to a metric ingestion API",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagEndpoint,
				Usage:   "metric ingestion endpoint",
				Value:   telemetry.DefaultEndpoint,
				EnvVars: []string{"LOADTEST_TELEMETRY_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:     flagLicenseKey,
				Usage:    "license key used to authenticate with the ingestion API",
				EnvVars:  []string{"LOADTEST_TELEMETRY_LICENSE_KEY"},
				Required: true,
			},
			&cli.StringFlag{
				Name:  flagTestName,
				Usage: "name of the test run",
				Value: telemetry.DefaultTestName,
			},
			&cli.IntFlag{
				Name:  flagBatchSize,
				Usage: "number of samples sent per batch",
				Value: telemetry.DefaultBatchSize,
			},
			&cli.StringFlag{
				Name:  flagSamplers,
				Usage: "sampler labels to forward, separated by ';' (all if empty)",
			},
			&cli.BoolFlag{
				Name:  flagSamplersRegex,
				Usage: "treat --samplers as a regular expression",
			},
			&cli.StringFlag{
				Name:  flagResponseHeaders,
				Usage: "response headers to attach, separated by ';'",
			},
			&cli.StringSliceFlag{
				Name:  flagProperty,
				Usage: "custom property KEY=VALUE attached to every sample (repeatable)",
			},
			&cli.IntFlag{
				Name:  flagChunkSize,
				Usage: "number of samples handed to the listener at a time",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level",
				Value: logrus.InfoLevel.String(),
			},
			&cli.BoolFlag{
				Name:  flagLogJSON,
				Usage: "log in JSON",
			},
			&cli.StringFlag{
				Name:  flagMetricsAddr,
				Usage: "address to serve the forwarder's own metrics on while running",
			},
			&cli.BoolFlag{
				Name:  flagInsecure,
				Usage: "skip verification of the endpoint's certificate",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	if err := configureLogging(c.String(flagLogLevel), c.Bool(flagLogJSON)); err != nil {
		return err
	}

	if c.NArg() == 0 {
		return errors.New("no results file given")
	}

	if c.Int(flagChunkSize) <= 0 {
		return fmt.Errorf("--%v must be positive", flagChunkSize)
	}

	params, err := buildParams(c)
	if err != nil {
		return err
	}

	var opts []telemetry.Option

	if c.Bool(flagInsecure) {
		opts = append(opts, telemetry.WithTransport(telemetry.InsecureTransport()))
	}

	if addr := c.String(flagMetricsAddr); addr != "" {
		reg := prometheus.NewRegistry()

		opts = append(opts, telemetry.WithRegisterer(reg))

		stop := serveMetrics(addr, reg)
		defer stop()
	}

	listener := telemetry.NewListener(opts...)

	if err := listener.Setup(c.Context, params); err != nil {
		return err
	}

	var failed int

	listener.Forwarder().AddFailureObserver(func(failure *telemetry.SendFailure) {
		failed += failure.Dropped
	})

	for _, path := range c.Args().Slice() {
		if err := forwardFile(c.Context, listener, path, c.Int(flagChunkSize)); err != nil {
			_ = listener.Teardown(c.Context)
			return err
		}
	}

	teardownErr := listener.Teardown(c.Context)

	stats := listener.Forwarder().Stats()

	logrus.WithFields(logrus.Fields{
		"recorded": stats.Recorded,
		"sent":     stats.Sent,
		"dropped":  stats.Dropped,
		"flushes":  stats.Flushes,
	}).Info("Finished forwarding results")

	if teardownErr != nil {
		return teardownErr
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d samples could not be delivered", failed), 2)
	}

	return nil
}

func buildParams(c *cli.Context) (map[string]string, error) {
	params := map[string]string{
		telemetry.KeyTestName:               c.String(flagTestName),
		telemetry.KeyConnectionString:       c.String(flagEndpoint),
		telemetry.KeyLicenceKey:             c.String(flagLicenseKey),
		telemetry.KeySamplersList:           c.String(flagSamplers),
		telemetry.KeyUseRegexForSamplerList: strconv.FormatBool(c.Bool(flagSamplersRegex)),
		telemetry.KeyMetricBatchSize:        strconv.Itoa(c.Int(flagBatchSize)),
		telemetry.KeyResponseHeaders:        c.String(flagResponseHeaders),
	}

	for _, prop := range c.StringSlice(flagProperty) {
		key, val, ok := strings.Cut(prop, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, expected KEY=VALUE", prop)
		}

		if !strings.HasPrefix(key, telemetry.CustomPropertyPrefix) {
			key = telemetry.CustomPropertyPrefix + key
		}

		params[key] = val
	}

	return params, nil
}

func forwardFile(ctx context.Context, listener *telemetry.Listener, path string, chunkSize int) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader, err := newJTLReader(file)
	if err != nil {
		return fmt.Errorf("%v: %w", path, err)
	}

	for {
		samples, err := reader.Read(chunkSize)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return fmt.Errorf("%v: %w", path, err)
		}

		if err := listener.HandleSampleResults(ctx, samples); err != nil {
			return err
		}
	}

	logrus.WithField("file", path).Debug("Forwarded results file")

	return nil
}

func configureLogging(level string, json bool) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	logrus.SetLevel(lvl)

	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return nil
}

// serveMetrics exposes the registry over HTTP until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(ctx)
	}
}
