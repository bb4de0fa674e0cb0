package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pydigest/internal/config"
	"pydigest/internal/runner"
)

var (
	configPath = flag.String("config", "config.toml", "Path to configuration file")
	historyN   = flag.Int("history", 0, "Print the N most recent runs and their posts, then exit")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\nReceived signal: %v, shutting down\n", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(ctx context.Context) error {
	fmt.Printf("Loading configuration from: %s\n", *configPath)

	r, err := config.LoadAndBuild(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if *historyN > 0 {
		return printHistory(ctx, r, *historyN)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := r.Start(ctx); err != nil && err != context.Canceled {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := r.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return r.Shutdown(shutdownCtx)
}

func printHistory(ctx context.Context, r *runner.Runner, limit int) error {
	store := r.Store()
	if store == nil {
		return fmt.Errorf("no storage configured")
	}
	defer store.Close(ctx)

	runs, err := store.Runs().ListRecent(ctx, limit)
	if err != nil {
		return err
	}

	for _, rec := range runs {
		fmt.Printf("run %d  %s  stage=%s  fetched=%d selected=%d composed=%d errors=%d\n",
			rec.ID, rec.StartedAt.Format(time.RFC3339), rec.FinalStage,
			rec.Fetched, rec.Selected, rec.Composed, rec.ErrorCount)
		if rec.Failure != "" {
			fmt.Printf("  failure: %s\n", rec.Failure)
		}

		posts, err := store.Posts().ListByRun(ctx, rec.ID)
		if err != nil {
			return err
		}
		for _, p := range posts {
			fmt.Printf("  %d. [%s] %s  %s\n", p.Position, p.Type, p.Title, p.Link)
		}
	}
	return nil
}
