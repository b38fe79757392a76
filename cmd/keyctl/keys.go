package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ubuygold/keygate/internal/license"
	"github.com/ubuygold/keygate/internal/store"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage license keys",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all license keys",
	Args:  cobra.NoArgs,
	RunE:  keysListCmdRun,
}

var keysAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a license key",
	Example: `  # Add a key with a generated value
  keyctl keys add --description "Customer A"

  # Add a key with an explicit value
  keyctl keys add --key LICENSE-123`,
	Args: cobra.NoArgs,
	RunE: keysAddCmdRun,
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete [key]",
	Short: "Delete a license key",
	Args:  cobra.ExactArgs(1),
	RunE:  keysDeleteCmdRun,
}

var keysToggleCmd = &cobra.Command{
	Use:   "toggle [key]",
	Short: "Flip the active flag of a license key",
	Args:  cobra.ExactArgs(1),
	RunE:  keysToggleCmdRun,
}

var keysCheckCmd = &cobra.Command{
	Use:   "check [key]",
	Short: "Validate a license key and record the usage",
	Args:  cobra.ExactArgs(1),
	RunE:  keysCheckCmdRun,
}

type keysAddFlags struct {
	key         string
	description string
}

var keysAddArgs keysAddFlags

func init() {
	keysAddCmd.Flags().StringVar(&keysAddArgs.key, "key", "",
		"Key value to store. A value is generated when empty.")
	keysAddCmd.Flags().StringVar(&keysAddArgs.description, "description", "",
		"Free-form description of the key.")

	keysCmd.AddCommand(keysListCmd, keysAddCmd, keysDeleteCmd, keysToggleCmd, keysCheckCmd)
	rootCmd.AddCommand(keysCmd)
}

func keysListCmdRun(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *license.Service) error {
		keys, err := svc.List(ctx)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			lastUsed := "-"
			if k.LastUsed != nil {
				lastUsed = k.LastUsed.Format(time.RFC3339)
			}
			rows = append(rows, []string{
				k.Key,
				k.Description,
				strconv.FormatBool(k.Active),
				k.CreatedAt.Format(time.RFC3339),
				lastUsed,
				strconv.FormatInt(k.UsageCount, 10),
			})
		}
		printTable(cmd.OutOrStdout(), []string{"key", "description", "active", "created", "last used", "usage"}, rows)
		return nil
	})
}

func keysAddCmdRun(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *license.Service) error {
		rec, err := svc.Add(ctx, keysAddArgs.key, keysAddArgs.description)
		if errors.Is(err, store.ErrDuplicateKey) {
			return fmt.Errorf("key %q already exists", keysAddArgs.key)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rec.Key)
		return nil
	})
}

func keysDeleteCmdRun(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *license.Service) error {
		if err := svc.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	})
}

func keysToggleCmdRun(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *license.Service) error {
		active, err := svc.Toggle(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("key %q not found", args[0])
		}
		if err != nil {
			return err
		}
		state := "disabled"
		if active {
			state = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], state)
		return nil
	})
}

func keysCheckCmdRun(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *license.Service) error {
		valid, err := svc.Check(ctx, args[0])
		if err != nil {
			return err
		}
		if !valid {
			return fmt.Errorf("key %q is not valid", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s valid\n", args[0])
		return nil
	})
}
