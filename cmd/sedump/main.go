package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"sedump/internal/config"
	"sedump/internal/metrics"
	"sedump/internal/metrics/datadog"
	"sedump/internal/metrics/prompush"

	// register all storage backends with the factory.
	_ "sedump/internal/storage/all"
)

// main is the entry point for the sedump binary. It assembles the job from a
// config file and flags, optionally initializes a metrics backend, and runs
// the load.
func main() {
	var (
		cfgPath           string
		dbKind            string
		dsn               string
		dir               string
		sites             string
		batch             int
		existOK           bool
		normalize         bool
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "job config JSON path; flags given on the command line override it")
	flag.StringVar(&dbKind, "db", "sqlite", "storage kind (sqlite, postgres)")
	flag.StringVar(&dsn, "dsn", "se.db", "storage DSN: file path for sqlite, URL for postgres")
	flag.StringVar(&dir, "dir", ".", "dump directory: Sites.xml plus one subdirectory per site")
	flag.StringVar(&sites, "sites", "", "comma-separated site tiny-names to load (default: all found)")
	flag.IntVar(&batch, "batch", 0, "rows per insert batch (0 = loader default)")
	flag.BoolVar(&existOK, "exist-ok", false, "tolerate rows already present in the destination")
	flag.BoolVar(&normalize, "normalize", false, "normalize text columns (NFC, strip control characters)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	job := config.Job{
		Storage: config.StorageConfig{Kind: dbKind, DSN: dsn},
		Dump:    config.DumpConfig{Dir: dir, Sites: splitSites(sites), Normalize: normalize},
		Runtime: config.RuntimeConfig{BatchSize: batch, ExistOK: existOK},
	}
	if cfgPath != "" {
		var err error
		job, err = config.Read(cfgPath)
		if err != nil {
			fatalf("%v", err)
		}
		// Flags set explicitly on the command line win over the file.
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "db":
				job.Storage.Kind = dbKind
			case "dsn":
				job.Storage.DSN = dsn
			case "dir":
				job.Dump.Dir = dir
			case "sites":
				job.Dump.Sites = splitSites(sites)
			case "normalize":
				job.Dump.Normalize = normalize
			case "batch":
				job.Runtime.BatchSize = batch
			case "exist-ok":
				job.Runtime.ExistOK = existOK
			}
		})
	}

	issues := config.Validate(job)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fatalf("configuration is invalid")
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	// Decide metrics backend: flag -> env -> disabled.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend("sedump", gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v backend=%v", gwURL, backendName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "datadog":
		addr := os.Getenv("DD_AGENT_ADDR")
		if addr == "" {
			addr = "127.0.0.1:8125"
		}

		b, err := datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "sedump."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: addr=%v backend=%v", addr, backendName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("job: storage=%s dir=%s sites=%v exist_ok=%v normalize=%v",
			job.Storage.Kind, job.Dump.Dir, job.Dump.Sites, job.Runtime.ExistOK, job.Dump.Normalize)
	}

	if err := run(ctx, job, *verbose); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// fatalf prints a formatted message to stderr and exits with status 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// splitSites turns a comma-separated flag value into tiny-names, dropping
// empty segments.
func splitSites(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
