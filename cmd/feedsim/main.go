// Command feedsim is a standalone stand-in for the upstream screening
// service. It streams synthetic game traffic through the same suspicion
// rules the dashboard uses and serves the resulting snapshots over the
// feed API, so susanohd can run end to end without a production backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/takurot/susanoh/internal/classify"
	"github.com/takurot/susanoh/internal/logger"
	"github.com/takurot/susanoh/internal/simulator"
)

var (
	listenAddr = flag.String("listen", ":8000", "Address to serve the feed API on")
	seed       = flag.Int64("seed", 0, "Random seed for the traffic generator (0 = time-based)")
	minDelay   = flag.Duration("min-delay", 100*time.Millisecond, "Minimum delay between batches")
	maxDelay   = flag.Duration("max-delay", 500*time.Millisecond, "Maximum delay between batches")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()
	logger.Init(*logLevel, "text")

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	gen := simulator.New(*seed)
	w := newWorld(classify.DefaultConfig())
	rng := rand.New(rand.NewSource(*seed + 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	go streamTraffic(ctx, gen, w, rng)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, w.Users())
	})
	mux.HandleFunc("/api/events/recent", func(rw http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		writeJSON(rw, w.RecentEvents(limit))
	})
	mux.HandleFunc("/api/analyses", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, w.Analyses())
	})
	mux.HandleFunc("/api/graph", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, w.Graph())
	})
	mux.HandleFunc("/api/stats", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, w.Stats())
	})
	mux.HandleFunc("/api/transitions", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, w.Transitions(50))
	})

	srv := &http.Server{
		Addr:              *listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Feed simulator listening on %s (seed %d)", *listenAddr, *seed)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed: %v", err)
	}
	logger.Info("Feed simulator stopped")
}

func streamTraffic(ctx context.Context, gen *simulator.Generator, w *world, rng *rand.Rand) {
	for {
		batch := gen.NextBatch()
		w.Ingest(batch)
		logger.Debug("Ingested %d events", len(batch))

		jitter := int64(*maxDelay - *minDelay)
		if jitter < 0 {
			jitter = 0
		}
		delay := *minDelay + time.Duration(rng.Int63n(jitter+1))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func writeJSON(rw http.ResponseWriter, data any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(data)
}
