package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/taskbot/internal/bitbucket"
	"github.com/simplesurance/taskbot/internal/cfg"
	"github.com/simplesurance/taskbot/internal/logfields"
	bitbucket_prov "github.com/simplesurance/taskbot/internal/provider/bitbucket"
	"github.com/simplesurance/taskbot/internal/taskbot"
)

const appName = "taskbot"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

// startServer runs serveFn in a go-routine and registers a goodbye handler
// that shuts srv down.
// name is used in log messages and events.
func startServer(name string, srv *http.Server, serveFn func() error) {
	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating "+name+" server",
			logfields.Event(name+"_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := srv.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down "+name+" server failed",
				logfields.Event(name+"_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			name+" server started",
			logfields.Event(name+"_server_started"),
			zap.String("listenAddr", srv.Addr),
		)

		err := serveFn()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info(name+" server terminated", logfields.Event(name+"_server_terminated"))
			return
		}

		logger.Fatal(
			name+" server terminated unexpectedly",
			logfields.Event(name+"_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func startHTTPSServer(listenAddr string, certFile, keyFile string, mux *http.ServeMux) {
	srv := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	startServer("https", &srv, func() error {
		return srv.ListenAndServeTLS(certFile, keyFile)
	})
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	srv := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	startServer("http", &srv, srv.ListenAndServe)
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/taskbot/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the taskbot configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nReceive Bitbucket Server webhook events and create pull request tasks.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration file", err)
	defer file.Close()

	config, err := cfg.Load(file)
	exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func mustNewBot(config *cfg.Config) *taskbot.Bot {
	timeout, err := config.BitbucketTimeout()
	exitOnErr("invalid bitbucket_http_timeout setting", err)

	taskAPI, err := bitbucket.ParseTaskAPI(config.BitbucketTaskAPI)
	exitOnErr("invalid bitbucket_task_api setting", err)

	opts := []taskbot.Option{taskbot.WithConfigPath(config.WorkflowConfigFile)}

	if config.EventFilterQuery != "" {
		filter, err := taskbot.NewEventFilter(config.EventFilterQuery)
		exitOnErr("invalid event_filter_query setting", err)

		opts = append(opts, taskbot.WithEventFilter(filter))
	}

	return taskbot.New(
		taskbot.BitbucketGatewayFactory(
			bitbucket.WithTimeout(timeout),
			bitbucket.WithTaskAPI(taskAPI),
		),
		opts...,
	)
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	bot := mustNewBot(config)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("webhook_endpoint", config.WebhookEndpoint),
		zap.String("webhook_secret", hide(config.WebhookSecret)),
		zap.String("metrics_endpoint", config.MetricsEndpoint),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.String("workflow_config_file", config.WorkflowConfigFile),
		zap.String("bitbucket_http_timeout", config.BitbucketHTTPTimeout),
		zap.String("bitbucket_task_api", config.BitbucketTaskAPI),
		zap.String("event_filter_query", config.EventFilterQuery),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	provOpts := []bitbucket_prov.Option{}
	if config.WebhookSecret != "" {
		provOpts = append(provOpts, bitbucket_prov.WithPayloadSecret(config.WebhookSecret))
	}

	prov := bitbucket_prov.New(bot, provOpts...)

	mux := http.NewServeMux()

	mux.HandleFunc("/", prov.IndexHandler)

	mux.HandleFunc(config.WebhookEndpoint, prov.HTTPHandler)
	logger.Info(
		"registered bitbucket webhook event http endpoint",
		logfields.Event("bitbucket_http_handler_registered"),
		zap.String("endpoint", config.WebhookEndpoint),
	)

	if config.MetricsEndpoint != "" {
		mux.Handle(config.MetricsEndpoint, promhttp.Handler())
		logger.Info(
			"registered prometheus metrics http endpoint",
			logfields.Event("metrics_http_handler_registered"),
			zap.String("endpoint", config.MetricsEndpoint),
		)
	}

	if config.HTTPListenAddr != "" {
		startHTTPServer(config.HTTPListenAddr, mux)
	}

	if config.HTTPSListenAddr != "" {
		startHTTPSServer(
			config.HTTPSListenAddr,
			config.HTTPSCertFile,
			config.HTTPSKeyFile,
			mux,
		)
	}

	select {}
}
