// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/apiwatcher/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load()
	if err != nil {
		fail("environment is malformed: " + err.Error())
	}

	if len(cfg.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (admin routes will 403).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		fail("PUBLIC_API_KEYS is empty (read routes will 401).")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, keys := range map[string][]string{"ADMIN_API_KEYS": cfg.AdminAPIKeys, "PUBLIC_API_KEYS": cfg.PublicAPIKeys} {
		for _, k := range keys {
			if strings.TrimSpace(k) != k {
				warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
				break
			}
		}
	}

	if os.Getenv("API_ADDR") == "" {
		warn("API_ADDR is empty; default " + cfg.Addr + " will be used.")
	} else {
		ok("API_ADDR=" + cfg.Addr)
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty: registry and history will be in-memory and lost on restart.")
	} else {
		ok("DATABASE_URL present")
	}
	if cfg.RedisURL == "" {
		warn("REDIS_URL empty: registry cache is per-process.")
	} else {
		ok("REDIS_URL present")
	}
	if len(cfg.KafkaBrokers) == 0 {
		warn("KAFKA_BROKERS empty: events stay in-process.")
	} else {
		ok("KAFKA_BROKERS=" + strings.Join(cfg.KafkaBrokers, ","))
	}

	if cfg.CheckInterval <= 0 {
		fail("CHECK_INTERVAL must be positive.")
	}
	if cfg.ProbeTimeout <= 0 {
		fail("PROBE_TIMEOUT must be positive.")
	}
	if cfg.ProbeTimeout >= cfg.CheckInterval {
		warn("PROBE_TIMEOUT >= CHECK_INTERVAL: slow runs will cause scheduled ticks to be skipped.")
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty: CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
