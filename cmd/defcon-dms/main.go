// Command defcon-dms is an optional standalone dead-man-switch listener:
// the same unauthenticated GET /checkin/{uuid} endpoint defcon-controller
// mounts in-process (when DMS_ENABLE=1), split out so an operator can run
// the heartbeat surface on its own, separately scaled process in front of
// the shared Store. Grounded on
// original_source/src/bin/controller/deadmanswitch.rs, which is itself a
// standalone axum router mounted onto the controller's bin/controller/main.rs.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/jonsson/defcon/internal/dms"
	"github.com/jonsson/defcon/internal/storage"
)

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func main() {
	dsn := flag.String("dsn", getEnv("DSN", ""), "relational store DSN (required)")
	listen := flag.String("dms-listen", getEnv("DMS_LISTEN", "127.0.0.1:8080"), "dead-man-switch listen address")
	flag.Parse()

	if *dsn == "" {
		log.Fatalf("defcon-dms: DSN must be provided")
	}

	db, err := storage.New(*dsn)
	if err != nil {
		log.Fatalf("defcon-dms: failed to open store: %v", err)
	}
	defer db.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /checkin/{uuid}", dms.Handler(db))

	log.Printf("defcon-dms: listening on %s", *listen)
	if err := http.ListenAndServe(*listen, mux); err != nil {
		log.Fatalf("defcon-dms: server error: %v", err)
	}
}
