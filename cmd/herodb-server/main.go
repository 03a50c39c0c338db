// Command herodb-server serves a directory of git-object-backed stores
// over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/herodb/herodb/core"
	"github.com/herodb/herodb/httpapi"
	"github.com/herodb/herodb/store"
)

func main() {
	port := flag.Int("port", 8080, "listen port")
	gcInterval := flag.Duration("gc-interval", 10*time.Minute, "interval between GC sweeps of every open store")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: herodb-server [-port N] [-gc-interval D] <stores_root>")
		os.Exit(2)
	}
	storesRoot := flag.Arg(0)

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	identity := core.Identity{Name: "herodb", Email: "herodb@localhost"}
	registry := store.NewRegistry(storesRoot, identity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go runGCWorker(ctx, &wg, registry, *gcInterval, log)

	server := httpapi.NewServer(registry, log)
	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", *port), Handler: server}

	go func() {
		log.Info("listening", "addr", httpServer.Addr, "stores_root", storesRoot)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server exited", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	wg.Wait()
}

// runGCWorker periodically sweeps every store the registry has opened so
// far, compacting its repository while holding that store's write lock.
// Failures are logged and swallowed; the worker retries next cycle.
func runGCWorker(ctx context.Context, wg *sync.WaitGroup, registry *store.Registry, interval time.Duration, log *slog.Logger) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Each(func(s *store.Store) {
				if err := s.Gc(); err != nil {
					log.Warn("gc failed", "store", s.ID, "error", err)
				}
			})
		}
	}
}
