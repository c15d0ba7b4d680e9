// Command hydracrawl runs the resource-health crawler: a scheduler loop
// that probes due resources, an analysis pool, a webhook sender, and the
// REST API, all sharing one SQLite-backed catalog. Wiring and shutdown
// style mirror the teacher's own cmd/plex-tuner/main.go: flag-based
// overrides, a plain http.Server, and signal.Notify-driven graceful
// shutdown.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opendata-ops/hydracrawl/internal/analysis"
	"github.com/opendata-ops/hydracrawl/internal/api"
	"github.com/opendata-ops/hydracrawl/internal/config"
	"github.com/opendata-ops/hydracrawl/internal/crawl"
	"github.com/opendata-ops/hydracrawl/internal/httpclient"
	"github.com/opendata-ops/hydracrawl/internal/logging"
	"github.com/opendata-ops/hydracrawl/internal/metrics"
	"github.com/opendata-ops/hydracrawl/internal/prober"
	"github.com/opendata-ops/hydracrawl/internal/queue"
	"github.com/opendata-ops/hydracrawl/internal/scheduler"
	"github.com/opendata-ops/hydracrawl/internal/store"
	"github.com/opendata-ops/hydracrawl/internal/webhook"
)

func main() {
	dbPath := flag.String("db", "", "override HYDRA_DB_PATH")
	httpAddr := flag.String("addr", "", "override HYDRA_HTTP_ADDR")
	flag.Parse()

	log := logging.For("main")
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Printf("fatal: open store: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	p := prober.New(cfg)
	pipeline := analysis.New(db, cfg, httpclient.ForStreaming())
	sched := scheduler.New(db, cfg)
	sender := webhook.NewSender(cfg.UpstreamWebhookURL)
	q := queue.New(cfg.ProbeTotalTimeout*2, 3)
	orchestrator := crawl.New(db, p, pipeline, sched, sender, q, cfg)

	server := api.New(db, orchestrator, cfg)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server,
	}

	go func() {
		log.Printf("listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("fatal: http server: %v", err)
			os.Exit(1)
		}
	}()

	go q.Run(ctx, cfg.AnalysisPoolSize)
	go runScheduleLoop(ctx, orchestrator, sched, cfg, log)

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

// runScheduleLoop repeatedly selects a batch of due resources and probes
// them across a bounded worker pool, per spec §4.1/§4.2.
func runScheduleLoop(ctx context.Context, o *crawl.Orchestrator, sched *scheduler.Scheduler, cfg *config.Config, log *logging.Logger) {
	sem := make(chan struct{}, cfg.ProbePoolSize)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		batch, err := sched.SelectBatch(ctx, cfg.ProbePoolSize)
		if err != nil {
			log.Printf("select batch: %v", err)
			continue
		}
		metrics.QueueDepth.WithLabelValues("probe-batch").Set(float64(len(batch)))
		for _, res := range batch {
			res := res
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func() {
				defer func() { <-sem }()
				if _, err := o.Probe(ctx, res, false); err != nil {
					log.Printf("probe %s: %v", res.URL, err)
				}
			}()
		}
	}
}
