package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/bookstock/internal/app"
	"github.com/alanyoungcy/bookstock/internal/server/middleware"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			pg, err := app.OpenPostgres(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pg.Close()

			applied, err := pg.RunMigrations(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if len(applied) == 0 {
				fmt.Println("schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Println("applied", name)
			}
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Load books and users from a TOML seed file",
		Long: `Load books and users from a TOML seed file into the configured store.

Books whose id already exists are skipped, so the command is safe to repeat.

Examples:
  stockctl seed seed.toml
  stockctl -c prod.toml seed catalog.toml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if strings.EqualFold(cfg.Store.Driver, "memory") {
				logger.Warn("stockctl: store driver is memory, seeded data will not persist")
			}
			seed, err := app.LoadSeed(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), cfg, logger, func(deps *app.Dependencies) error {
				res, err := app.ApplySeed(cmd.Context(), deps.Services.Inventory, deps.Users, seed)
				if err != nil {
					return err
				}
				fmt.Printf("seeded %d books, %d users (%d books already present)\n", res.Books, res.Users, res.Skipped)
				return nil
			})
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the inventory summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), cfg, logger, func(deps *app.Dependencies) error {
				sum, err := deps.Services.Inventory.Summary(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(map[string]int{
					"totalBooks":      sum.TotalBooks,
					"inStockCount":    sum.InStockCount,
					"outOfStockCount": sum.OutOfStockCount,
					"lowStockCount":   sum.LowStockCount,
				})
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one low-stock alert sweep and notify",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled {
				return errors.New("sweep: redis.enabled is required so the sweep sees the service's alert state")
			}
			return withDeps(cmd.Context(), cfg, logger, func(deps *app.Dependencies) error {
				res, err := deps.Services.Alerts.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				if res.Skipped {
					fmt.Println("sweep skipped: another instance holds the sweep lock")
					return nil
				}
				return printJSON(map[string]any{
					"lowStock": res.LowStock,
					"raised":   res.Raised,
					"cleared":  res.Cleared,
					"failed":   res.Failed,
				})
			})
		},
	}
}

func reportCmd() *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Archive one inventory snapshot to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Report.Enabled = true
			if err := cfg.Validate(); err != nil {
				return err
			}
			return withDeps(cmd.Context(), cfg, logger, func(deps *app.Dependencies) error {
				key, err := deps.Services.Reports.Archive(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println("archived", key)
				if !prune {
					return nil
				}
				removed, err := deps.Services.Reports.Prune(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("pruned %d snapshots\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "also delete snapshots older than report.retention_days")
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [api-key]",
		Short: "Print the bcrypt hash to use as server.api_key_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := middleware.HashAPIKey(args[0])
			if err != nil {
				return fmt.Errorf("hash-key: %w", err)
			}
			fmt.Println(hash)
			return nil
		},
	}
}
