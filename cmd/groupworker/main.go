package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	groupworker "github.com/hugolhafner/go-groupworker"
	"github.com/hugolhafner/go-groupworker/config"
	"github.com/hugolhafner/go-groupworker/handlers"
	"github.com/hugolhafner/go-groupworker/kafka"
	"github.com/hugolhafner/go-groupworker/logger"
	"github.com/hugolhafner/go-groupworker/metrics"
	gwotel "github.com/hugolhafner/go-groupworker/otel"
	"github.com/hugolhafner/go-groupworker/plugins/zaplogger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"go.opentelemetry.io/otel"
)

const (
	handlerLog         = "log"
	handlerCloudEvents = "cloudevents"

	pingTimeout     = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func startHandler(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Log.Output == "file" {
		cfg.Log = cfg.Log.WithDefaultPaths(cfg.GroupID, cfg.ClientID)
	}

	l, closeLog, err := zaplogger.NewFromConfig(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() {
		_ = closeLog()
	}()

	sarama.Logger = kafka.NewSaramaLogger(l)

	handler, err := buildHandler(c.String("handler"), l)
	if err != nil {
		return err
	}

	client, err := kafka.NewClient(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to create kafka client: %w", err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err = client.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("brokers unreachable: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	if addr := c.String("metrics-addr"); addr != "" {
		srv := serveMetrics(addr, reg, l)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	w := groupworker.New(
		cfg, client, handler,
		groupworker.WithLogger(l),
		groupworker.WithMetrics(m),
		groupworker.WithTelemetry(gwotel.NewTelemetry(otel.GetTracerProvider(), otel.GetTextMapPropagator())),
	)

	return w.Run(ctx)
}

func buildHandler(name string, l logger.Logger) (groupworker.Handler, error) {
	switch name {
	case handlerLog, "":
		return groupworker.HandlerFunc(
			func(_ context.Context, msg kafka.Message) error {
				l.Debug("Record handled", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
				return nil
			},
		), nil
	case handlerCloudEvents:
		return handlers.NewCloudEventRouter(
			handlers.WithFallback(handlers.Logging(l)),
			handlers.WithRouterLogger(l),
		), nil
	default:
		return nil, config.NewConfigurationError("handler", fmt.Sprintf("unknown handler %q", name))
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, l logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Metrics server stopped", "error", err)
		}
	}()

	l.Info("Metrics server listening", "addr", addr)
	return srv
}

func buildCLI() *cli.App {
	app := cli.NewApp()
	app.Name = "groupworker"
	app.Usage = "Kafka consumer group worker"
	app.Version = groupworker.Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "config file (yaml, json or toml)",
			EnvVar: "GROUPWORKER_CONFIG",
		},
		cli.StringFlag{
			Name:  "log-level, l",
			Usage: "override log.level from the config",
		},
		cli.StringFlag{
			Name:   "metrics-addr",
			Value:  ":9102",
			Usage:  "address for the prometheus endpoint, empty to disable",
			EnvVar: "GROUPWORKER_METRICS_ADDR",
		},
		cli.StringFlag{
			Name:  "handler",
			Value: handlerLog,
			Usage: fmt.Sprintf("record handler: %s or %s", handlerLog, handlerCloudEvents),
		},
	}
	app.Action = startHandler

	return app
}

func main() {
	if err := buildCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
