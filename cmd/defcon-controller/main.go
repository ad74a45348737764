// Command defcon-controller is the central controller process: it owns the
// Store, runs the in-process "@controller" Scheduler tick alongside the
// Cleaner and dead-man-switch endpoint, and serves the full §6 HTTP API
// (checks/groups/alerters/users CRUD, outages, runner protocol, metrics)
// that remote defcon-runner processes and the web status page talk to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonsson/defcon/internal/alert"
	"github.com/jonsson/defcon/internal/api"
	"github.com/jonsson/defcon/internal/cleaner"
	"github.com/jonsson/defcon/internal/dms"
	"github.com/jonsson/defcon/internal/inhibitor"
	"github.com/jonsson/defcon/internal/ingest"
	"github.com/jonsson/defcon/internal/jwtkeys"
	"github.com/jonsson/defcon/internal/model"
	"github.com/jonsson/defcon/internal/probe"
	"github.com/jonsson/defcon/internal/scheduler"
	"github.com/jonsson/defcon/internal/storage"
)

type config struct {
	dsn string

	apiEnable bool
	apiListen string

	handlerEnable   bool
	handlerInterval time.Duration
	handlerSpread   time.Duration

	cleanerEnable    bool
	cleanerInterval  time.Duration
	cleanerThreshold time.Duration

	dmsEnable bool
	dmsListen string

	dnsResolver string

	alerterDefault  string
	alerterFallback string

	publicKeyPath string
	jwtSigningKey string

	ispConfigPath string
}

// getEnv and friends mirror the teacher's cmd/ccc-api/main.go helpers: every
// flag's default is read from its §6 environment variable, so operators can
// configure this entirely via env (the common deploy path) while still
// getting `-flag value` overrides and `-h` usage text for free.
func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	return v == "1"
}

func getEnvDuration(key, defaultVal string) time.Duration {
	d, err := model.ParseDuration(getEnv(key, defaultVal))
	if err != nil {
		// A malformed env var falls back to the literal default rather than
		// panicking during flag registration; the malformed value is
		// ignored without an error.
		d, _ = model.ParseDuration(defaultVal)
	}
	return d
}

// durationFlag adapts model.ParseDuration (which understands the spec's
// "1y"/"72h" day/year suffixes on top of time.ParseDuration) to flag.Value,
// since flag.DurationVar is hardwired to time.ParseDuration.
type durationFlag struct{ d *time.Duration }

func (f durationFlag) String() string {
	if f.d == nil {
		return ""
	}
	return f.d.String()
}

func (f durationFlag) Set(s string) error {
	d, err := model.ParseDuration(s)
	if err != nil {
		return err
	}
	*f.d = d
	return nil
}

func parseConfig() (*config, error) {
	cfg := &config{}

	flag.StringVar(&cfg.dsn, "dsn", getEnv("DSN", ""), "relational store DSN (required)")
	flag.BoolVar(&cfg.apiEnable, "api-enable", getEnvBool("API_ENABLE", true), "serve the HTTP API")
	flag.StringVar(&cfg.apiListen, "api-listen", getEnv("API_LISTEN", "127.0.0.1:8000"), "API listen address")
	flag.BoolVar(&cfg.handlerEnable, "handler-enable", getEnvBool("HANDLER_ENABLE", true), "run the in-process @controller scheduler")
	flag.BoolVar(&cfg.cleanerEnable, "cleaner-enable", getEnvBool("CLEANER_ENABLE", false), "run the retention cleaner")
	flag.BoolVar(&cfg.dmsEnable, "dms-enable", getEnvBool("DMS_ENABLE", true), "serve the dead-man-switch checkin endpoint")
	flag.StringVar(&cfg.dmsListen, "dms-listen", getEnv("DMS_LISTEN", "127.0.0.1:8080"), "dead-man-switch listen address")
	flag.StringVar(&cfg.dnsResolver, "dns-resolver", getEnv("DNS_RESOLVER", "1.1.1.1"), "default DNS resolver IP for the dns Prober")
	flag.StringVar(&cfg.alerterDefault, "alerter-default", getEnv("ALERTER_DEFAULT", ""), "alerter uuid assigned to new checks that don't name one")
	flag.StringVar(&cfg.alerterFallback, "alerter-fallback", getEnv("ALERTER_FALLBACK", ""), "alerter uuid used when a check's own alerter can't be resolved")
	flag.StringVar(&cfg.publicKeyPath, "public-key", getEnv("PUBLIC_KEY", ""), "path to the ECDSA P-256 public key verifying runner JWTs")
	flag.StringVar(&cfg.jwtSigningKey, "jwt-signing-key", getEnv("JWT_SIGNING_KEY", ""), "HMAC secret signing user access/refresh tokens")
	flag.StringVar(&cfg.ispConfigPath, "isp-config", getEnv("ISP_CONFIG_PATH", ""), "optional JSON file of ASN -> display-name overrides for the status page")

	cfg.handlerInterval = getEnvDuration("HANDLER_INTERVAL", "1s")
	flag.Var(durationFlag{&cfg.handlerInterval}, "handler-interval", "scheduler tick cadence")
	cfg.handlerSpread = getEnvDuration("HANDLER_SPREAD", "0s")
	flag.Var(durationFlag{&cfg.handlerSpread}, "handler-spread", "upper bound of per-probe random jitter")
	cfg.cleanerInterval = getEnvDuration("CLEANER_INTERVAL", "10m")
	flag.Var(durationFlag{&cfg.cleanerInterval}, "cleaner-interval", "retention sweep cadence")
	cfg.cleanerThreshold = getEnvDuration("CLEANER_THRESHOLD", "1y")
	flag.Var(durationFlag{&cfg.cleanerThreshold}, "cleaner-threshold", "retention sweep age horizon")

	flag.Parse()

	if cfg.dsn == "" {
		return nil, fmt.Errorf("DSN must be provided")
	}
	if cfg.handlerInterval < time.Second {
		return nil, fmt.Errorf("HANDLER_INTERVAL must be at least 1s")
	}

	return cfg, nil
}

// runMigrate backs the explicit `defcon-controller migrate` subcommand: it
// applies pending migrations and exits 0, without starting any subsystem.
// Plain startup (no subcommand) also applies migrations via storage.New,
// but a failure there is a fatal startup error (exit 1) per §6; this
// subcommand exists so operators can run migrations as a standalone
// deploy step ahead of bringing the server up.
func runMigrate(dsn string) {
	db, err := storage.New(dsn)
	if err != nil {
		log.Fatalf("defcon-controller: migrate failed: %v", err)
	}
	db.Close()
	log.Printf("defcon-controller: migrations applied")
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		dsn := os.Getenv("DSN")
		if dsn == "" {
			log.Fatalf("defcon-controller: DSN must be provided")
		}
		runMigrate(dsn)
		return
	}

	cfg, err := parseConfig()
	if err != nil {
		log.Fatalf("defcon-controller: configuration error: %v", err)
	}

	if !cfg.apiEnable && !cfg.handlerEnable && !cfg.cleanerEnable && !cfg.dmsEnable {
		log.Fatalf("defcon-controller: every subsystem is disabled, nothing to run")
	}

	db, err := storage.New(cfg.dsn)
	if err != nil {
		log.Fatalf("defcon-controller: failed to open store: %v", err)
	}
	defer db.Close()

	if cfg.alerterDefault != "" {
		if err := db.SetSetting(api.SettingDefaultAlerter, cfg.alerterDefault); err != nil {
			log.Fatalf("defcon-controller: failed to persist ALERTER_DEFAULT: %v", err)
		}
	}
	if cfg.alerterFallback != "" {
		if err := db.SetSetting(alert.SettingFallbackAlerter, cfg.alerterFallback); err != nil {
			log.Fatalf("defcon-controller: failed to persist ALERTER_FALLBACK: %v", err)
		}
	}

	probe.DefaultResolver = cfg.dnsResolver

	registry := probe.NewRegistry()
	registry.Register(model.KindDeadManSwitch, dms.Prober(db))

	dispatcher := alert.New(db)
	ingestor := ingest.New(db, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handlerWG sync.WaitGroup
	if cfg.handlerEnable {
		inh := inhibitor.New()
		sched := scheduler.New(db, registry, ingestor, inh, model.ControllerSite, cfg.handlerInterval, cfg.handlerSpread)
		handlerWG.Add(1)
		go func() {
			defer handlerWG.Done()
			sched.Run(ctx)
		}()
		log.Printf("defcon-controller: scheduler running for site %s, interval=%s spread=%s", model.ControllerSite, cfg.handlerInterval, cfg.handlerSpread)
	}

	var cleanerStop chan struct{}
	if cfg.cleanerEnable {
		cl := cleaner.New(db, cfg.cleanerInterval, cfg.cleanerThreshold)
		cleanerStop = make(chan struct{})
		go cl.Run(cleanerStop)
		log.Printf("defcon-controller: cleaner running, interval=%s threshold=%s", cfg.cleanerInterval, cfg.cleanerThreshold)
	}

	var dmsServer *http.Server
	if cfg.dmsEnable {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /checkin/{uuid}", dms.Handler(db))
		dmsServer = &http.Server{Addr: cfg.dmsListen, Handler: mux}
		go func() {
			log.Printf("defcon-controller: dead-man-switch endpoint listening on %s", cfg.dmsListen)
			if err := dmsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("defcon-controller: dms server error: %v", err)
			}
		}()
	}

	var apiServer *http.Server
	if cfg.apiEnable {
		if cfg.jwtSigningKey == "" {
			log.Fatalf("defcon-controller: JWT_SIGNING_KEY must be set when API_ENABLE=1")
		}
		userKeys := jwtkeys.NewUserKeys(cfg.jwtSigningKey)

		var runnerKeys *jwtkeys.RunnerKeys
		if cfg.publicKeyPath != "" {
			pemBytes, err := os.ReadFile(cfg.publicKeyPath)
			if err != nil {
				log.Fatalf("defcon-controller: failed to read PUBLIC_KEY: %v", err)
			}
			runnerKeys, err = jwtkeys.LoadRunnerPublicKey(pemBytes)
			if err != nil {
				log.Fatalf("defcon-controller: failed to parse PUBLIC_KEY: %v", err)
			}
		} else {
			log.Printf("defcon-controller: PUBLIC_KEY not set, runner protocol routes will reject all requests")
		}

		handler := api.New(db, cfg.dsn, userKeys, runnerKeys, ingestor)
		if cfg.ispConfigPath != "" {
			if err := handler.LoadISPConfig(cfg.ispConfigPath); err != nil {
				log.Printf("defcon-controller: failed to load ISP_CONFIG_PATH: %v", err)
			}
		}
		mux := http.NewServeMux()
		handler.SetupRoutes(mux, nil)

		secCfg := api.DefaultSecurityConfig()
		generalLimiter := api.NewRateLimiter(100, 200)
		httpHandler := api.Middleware(mux, secCfg, generalLimiter)

		apiServer = &http.Server{
			Addr:         cfg.apiListen,
			Handler:      httpHandler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Printf("defcon-controller: API listening on %s", cfg.apiListen)
			if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("defcon-controller: api server error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("defcon-controller: shutting down")

	cancel()
	if cleanerStop != nil {
		close(cleanerStop)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if apiServer != nil {
		_ = apiServer.Shutdown(shutdownCtx)
	}
	if dmsServer != nil {
		_ = dmsServer.Shutdown(shutdownCtx)
	}
	handlerWG.Wait()
}
