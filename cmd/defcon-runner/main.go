// Command defcon-runner is the remote half of the §6 runner protocol: a
// standalone process that represents one geographically distributed site,
// polling a controller for checks stale at that site, executing the same
// Prober registry the controller uses in-process, and reporting results
// back over HTTP. It reuses internal/scheduler unmodified, swapping the
// direct-Store/direct-Ingestor pair for internal/runnerclient's HTTP-backed
// implementations of the same two interfaces.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/jonsson/defcon/internal/inhibitor"
	"github.com/jonsson/defcon/internal/jwtkeys"
	"github.com/jonsson/defcon/internal/model"
	"github.com/jonsson/defcon/internal/probe"
	"github.com/jonsson/defcon/internal/runnerclient"
	"github.com/jonsson/defcon/internal/scheduler"
)

var siteRE = regexp.MustCompile(`^[a-z0-9-]+$`)

type config struct {
	controllerURL  string
	site           string
	privateKeyPath string

	pollInterval  time.Duration
	handlerSpread time.Duration

	dnsResolver string
}

// getEnv and getEnvDuration mirror the controller binary's helpers (in turn
// mirroring the teacher's cmd/ccc-api/main.go): every flag's default comes
// from its §6 environment variable.
func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvDuration(key, defaultVal string) time.Duration {
	d, err := model.ParseDuration(getEnv(key, defaultVal))
	if err != nil {
		d, _ = model.ParseDuration(defaultVal)
	}
	return d
}

// durationFlag adapts model.ParseDuration to flag.Value; see
// cmd/defcon-controller/main.go for why flag.DurationVar won't do.
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

	flag.StringVar(&cfg.controllerURL, "controller-url", getEnv("CONTROLLER_URL", ""), "base URL of the controller's runner API (required)")
	flag.StringVar(&cfg.site, "site", getEnv("SITE", ""), "this runner's site name (required)")
	flag.StringVar(&cfg.privateKeyPath, "private-key", getEnv("PRIVATE_KEY", ""), "path to the ECDSA P-256 private key signing this runner's JWTs (required)")
	flag.StringVar(&cfg.dnsResolver, "dns-resolver", getEnv("DNS_RESOLVER", "1.1.1.1"), "default DNS resolver IP for the dns Prober")

	cfg.pollInterval = getEnvDuration("POLL_INTERVAL", "1s")
	flag.Var(durationFlag{&cfg.pollInterval}, "poll-interval", "how often to poll the controller for stale checks")
	cfg.handlerSpread = getEnvDuration("HANDLER_SPREAD", "0s")
	flag.Var(durationFlag{&cfg.handlerSpread}, "handler-spread", "upper bound of per-probe random jitter")

	flag.Parse()

	if cfg.controllerURL == "" {
		return nil, fmt.Errorf("CONTROLLER_URL must be provided")
	}
	if cfg.site == "" {
		return nil, fmt.Errorf("SITE must be provided")
	}
	if !siteRE.MatchString(cfg.site) {
		return nil, fmt.Errorf("SITE should only contain lowercase alphanumeric characters and dashes")
	}
	if cfg.privateKeyPath == "" {
		return nil, fmt.Errorf("PRIVATE_KEY must be provided")
	}
	if cfg.pollInterval < time.Second {
		return nil, fmt.Errorf("POLL_INTERVAL must be at least 1s")
	}

	return cfg, nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		log.Fatalf("defcon-runner: configuration error: %v", err)
	}

	pemBytes, err := os.ReadFile(cfg.privateKeyPath)
	if err != nil {
		log.Fatalf("defcon-runner: failed to read PRIVATE_KEY: %v", err)
	}
	keys, err := jwtkeys.LoadRunnerPrivateKey(pemBytes)
	if err != nil {
		log.Fatalf("defcon-runner: failed to parse PRIVATE_KEY: %v", err)
	}

	probe.DefaultResolver = cfg.dnsResolver

	// deadmanswitch checks need direct Store access to read back the last
	// heartbeat; the controller's GET /api/runner/checks never hands them to
	// a runner, so the registry is left without a deadmanswitch entry here.
	registry := probe.NewRegistry()

	client := runnerclient.New(cfg.controllerURL, cfg.site, keys, 30*time.Second)
	inh := inhibitor.New()
	sched := scheduler.New(client, registry, client, inh, cfg.site, cfg.pollInterval, cfg.handlerSpread)

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	log.Printf("defcon-runner: polling %s for site %s, interval=%s spread=%s", cfg.controllerURL, cfg.site, cfg.pollInterval, cfg.handlerSpread)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("defcon-runner: shutting down")
	cancel()
}
