package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ubuygold/keygate/internal/config"
	"github.com/ubuygold/keygate/internal/keygen"
	"github.com/ubuygold/keygate/internal/license"
	"github.com/ubuygold/keygate/internal/logger"
	"github.com/ubuygold/keygate/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "keyctl",
	Short:         "Administer keygate license keys without the HTTP API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

type rootFlags struct {
	config  string
	timeout time.Duration
}

var rootArgs = rootFlags{}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.config, "config", "config.yaml",
		"Path to the keygate configuration file.")
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", 30*time.Second,
		"Timeout for store operations.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openService builds a license service on the configured store. The caller
// closes the returned store.
func openService(ctx context.Context) (*license.Service, store.Store, error) {
	cfg, _, err := config.LoadConfig(rootArgs.config)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Type == config.StoreMemory {
		return nil, nil, errors.New("the memory store only lives inside a running server")
	}

	keyStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open key store: %w", err)
	}
	gen, err := keygen.New(cfg.Keygen.Strategy)
	if err != nil {
		keyStore.Close()
		return nil, nil, err
	}

	log := logger.NewWithWriter(os.Stderr, logger.FormatText, cfg.Debug)
	return license.NewService(keyStore, gen, nil, log), keyStore, nil
}

// withService runs fn against a freshly opened service.
func withService(fn func(ctx context.Context, svc *license.Service) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	svc, keyStore, err := openService(ctx)
	if err != nil {
		return err
	}
	defer keyStore.Close()
	return fn(ctx, svc)
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
