package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hempies/coasync/internal/config"
	"hempies/coasync/internal/container"
	syncsvc "hempies/coasync/internal/sync"
)

func main() {
	root := &cobra.Command{
		Use:          "coasync",
		Short:        "Sync Square inventory into the COA product store",
		SilenceUsage: true,
	}

	var testMode bool
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync to completion and print the final log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), testMode)
		},
	}
	syncCmd.Flags().BoolVar(&testMode, "test", false, "limit the sync to the first 5 SKUs")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}

	root.AddCommand(syncCmd, serveCmd, statusCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

func initContainer() (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Info("Configuration loaded successfully")

	app, err := container.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	return app, nil
}

func runSync(ctx context.Context, testMode bool) error {
	app, err := initContainer()
	if err != nil {
		return err
	}
	defer app.Close()

	log.Info("Starting sync...")
	if err := app.Service.Start(ctx, testMode); err != nil {
		return err
	}

	// Start drains the first batch; keep draining until completion.
	for {
		running, err := app.Service.Running(ctx)
		if err != nil {
			return err
		}
		if !running {
			break
		}
		if err := app.Service.DrainBatch(ctx); err != nil {
			if errors.Is(err, syncsvc.ErrNotRunning) {
				break
			}
			return err
		}
	}

	status, err := app.Service.Status(ctx)
	if err != nil {
		return err
	}
	for _, entry := range status.Log {
		fmt.Printf("[%s] %s\n", entry.Time.Format("2006-01-02 15:04:05"), entry.Message)
	}
	log.Infof("Sync finished: %d/%d items processed", status.Processed, status.Total)
	return nil
}

func runServe(ctx context.Context) error {
	app, err := initContainer()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Application finished successfully")
	return nil
}

func runStatus(ctx context.Context) error {
	app, err := initContainer()
	if err != nil {
		return err
	}
	defer app.Close()

	status, err := app.Service.Status(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
