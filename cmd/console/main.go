package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-console-session/activity"
	"github.com/jrsteele09/go-console-session/api"
	"github.com/jrsteele09/go-console-session/auth"
	"github.com/jrsteele09/go-console-session/credential"
	"github.com/jrsteele09/go-console-session/internal/backendfake"
	"github.com/jrsteele09/go-console-session/internal/config"
	"github.com/jrsteele09/go-console-session/internal/metrics"
	"github.com/jrsteele09/go-console-session/internal/telemetry"
	"github.com/jrsteele09/go-console-session/navigation"
	"github.com/jrsteele09/go-console-session/routeguard"
	"github.com/jrsteele09/go-console-session/tenants"
	"github.com/jrsteele09/go-console-session/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const (
	demoEmail    = "demo@acme.test"
	demoPassword = "demo-password"
)

type options struct {
	apiURL      string
	appURL      string
	stateFile   string
	logLevel    string
	metricsAddr string
	demo        bool
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	opts, err := parseFlags(c, os.Args[1:])
	if err != nil {
		return err
	}

	logger := newLogger(c.GetEnv(), opts.logLevel)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		waitForStopSignal()
		cancel()
	}()

	if opts.demo {
		demoURL, stop, err := startDemoBackend(logger)
		if err != nil {
			return err
		}
		defer stop()
		opts.apiURL = demoURL
	}

	shutdownTracing := telemetry.Setup(ctx, c.GetAppName(), c.GetOTLPEndpoint(), c.GetOTLPInsecure(), logger)
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("flushing traces")
		}
	}()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	if opts.metricsAddr != "" {
		server := &http.Server{Addr: opts.metricsAddr, Handler: metrics.Handler(registry)}
		go listenAndServe(server, logger)
		defer shutdown(server)
	}

	location, err := navigation.NewStaticLocation(opts.appURL)
	if err != nil {
		return fmt.Errorf("invalid app URL: %w", err)
	}

	guard := transport.New(location,
		transport.WithBase(telemetry.Transport(http.DefaultTransport)),
		transport.WithPages(c.GetPages()),
		transport.WithLoginSurface(c.GetLoginSurface()),
		transport.WithLogger(logger.With().Str("component", "transport").Logger()),
		transport.WithMetrics(collector),
	)
	client, err := api.New(opts.apiURL, guard.Client(c.GetRequestTimeout()))
	if err != nil {
		return err
	}
	store, closeStore, err := newStore(ctx, c, opts.stateFile, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	resolver := tenants.NewResolver(location, client,
		tenants.WithLocalSuffixes(c.GetLocalHostSuffixes()),
		tenants.WithLogger(logger.With().Str("component", "tenants").Logger()),
	)
	manager := auth.NewManager(client, store, guard, location,
		auth.WithPages(c.GetPages()),
		auth.WithResolver(resolver),
		auth.WithTitleSetter(func(title string) { fmt.Printf("\033]0;%s\007", title) }),
		auth.WithLogger(logger.With().Str("component", "auth").Logger()),
	)
	guard.OnDeauthenticate(manager.Deauthenticate)

	routes := routeguard.New(resolver, location,
		routeguard.WithPages(c.GetPages()),
		routeguard.WithLocalSuffixes(c.GetLocalHostSuffixes()),
		routeguard.WithLogger(logger.With().Str("component", "routeguard").Logger()),
	)
	tracker := activity.New(client, store,
		activity.WithHeartbeatInterval(c.GetHeartbeatInterval()),
		activity.WithIdleTimeout(c.GetIdleTimeout()),
		activity.WithInputThrottle(c.GetInputHeartbeatMinInterval()),
		activity.WithLogger(logger.With().Str("component", "activity").Logger()),
		activity.WithMetrics(collector),
	)

	if err := routes.Admit(ctx); err != nil {
		return fmt.Errorf("%w (now at %s)", err, location.URL())
	}

	state := manager.Initialize(ctx)
	unbind := tracker.Bind(ctx, manager, c.GetBusinessUnitID())
	defer unbind()

	p := newPrompter(os.Stdin, os.Stdout)
	if !state.IsLoggedIn {
		if err := signIn(ctx, p, manager, location); err != nil {
			return err
		}
	}

	return session(ctx, p, manager, tracker, location)
}

func parseFlags(c config.Config, args []string) (options, error) {
	opts := options{}
	flagSet := pflag.NewFlagSet("console", pflag.ContinueOnError)
	flagSet.StringVar(&opts.apiURL, "api-url", c.GetAPIBaseURL(), "console backend base URL")
	flagSet.StringVar(&opts.appURL, "app-url", c.GetAppURL(), "URL of the console the session runs on")
	flagSet.StringVar(&opts.stateFile, "state-file", c.GetStateFile(), "path of the persisted client state")
	flagSet.StringVar(&opts.logLevel, "log-level", c.GetLogLevel(), "log level (debug, info, warn, error)")
	flagSet.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flagSet.BoolVar(&opts.demo, "demo", false, "run against an in-process demo backend")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

// newStore keeps client state in Redis when a URL is configured and in the
// state file otherwise.
func newStore(ctx context.Context, c config.Config, stateFile string, logger zerolog.Logger) (credential.Store, func(), error) {
	redisURL := c.GetStateRedisURL()
	if redisURL == "" {
		return credential.NewFileStore(stateFile), func() {}, nil
	}

	client, err := credential.NewRedisClient(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("namespace", c.GetStateNamespace()).Msg("client state in redis")
	return credential.NewRedisStore(client, c.GetStateNamespace()), func() { _ = client.Close() }, nil
}

func newLogger(env, level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if strings.EqualFold(env, "DEV") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(parsed).With().Timestamp().Logger()
}

// startDemoBackend serves a seeded backendfake on a loopback port and returns
// its API base URL.
func startDemoBackend(logger zerolog.Logger) (string, func(), error) {
	backend := backendfake.New(backendfake.WithSessionAuth())
	backend.AddCompany(backendfake.Company{ID: "c-demo", Name: "Acme Demo", Subdomain: "acme", Subscription: "trial"})
	if err := backend.AddUser(backendfake.User{
		ID:             "u-demo",
		Email:          demoEmail,
		Name:           "Demo User",
		CompanyID:      "c-demo",
		BusinessUnitID: "bu-1",
		Role:           "admin",
	}, demoPassword); err != nil {
		return "", nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("demo backend listen: %w", err)
	}
	server := &http.Server{Handler: backend}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("demo backend stopped")
		}
	}()

	logger.Info().
		Str("email", demoEmail).
		Str("password", demoPassword).
		Str("otp", backendfake.DefaultOTP).
		Msg("demo backend ready")

	return "http://" + listener.Addr().String() + backendfake.BasePath, func() { shutdown(server) }, nil
}

func listenAndServe(server *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", server.Addr).Msg("metrics listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
