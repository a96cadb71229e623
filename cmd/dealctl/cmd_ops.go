package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/straye-as/deal-engine/internal/auth"
	"github.com/straye-as/deal-engine/internal/catalog"
	"github.com/straye-as/deal-engine/internal/database"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/service"
	"github.com/straye-as/deal-engine/internal/storage"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	tokenCmd := &cobra.Command{
		Use:   "token <company-id>",
		Short: "Issue a bearer token acting for a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid company ID %q", args[0])
			}
			token, err := auth.NewJWTValidator(&cfg.Auth).IssueToken(companyID, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&subject, "subject", "dealctl", "token subject")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return tokenCmd
}

func newCatalogCmd() *cobra.Command {
	var batchSize int

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Product catalog maintenance",
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the warehouse catalog into the products table once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			warehouse, err := catalog.NewWarehouseCatalog(ctx, &cfg.Warehouse, log)
			if err != nil {
				return err
			}
			if warehouse == nil {
				return fmt.Errorf("warehouse is not enabled or has no credentials")
			}
			defer func() { _ = warehouse.Close() }()

			db, err := database.NewDatabase(&cfg.Database, log)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			syncer := catalog.NewSyncer(warehouse, repository.NewProductRepository(db), log).WithBatchSize(batchSize)
			synced, failed, err := syncer.SyncProducts(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "synced=%d failed=%d\n", synced, failed)
			return err
		},
	}
	syncCmd.Flags().IntVar(&batchSize, "batch-size", 500, "products per warehouse page")

	catalogCmd.AddCommand(syncCmd)
	return catalogCmd
}

func newCleanupCmd() *cobra.Command {
	var (
		batchSize   int
		maxAttempts int
	)

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Retry queued storage object deletions once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := database.NewDatabase(&cfg.Database, log)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			store, err := storage.NewStorage(ctx, &cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}

			cleanup := service.NewObjectCleanupService(store, repository.NewPendingDeletionRepository(db), log)
			result, err := cleanup.Sweep(ctx, batchSize, maxAttempts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d failed=%d\n", result.Deleted, result.Failed)
			return nil
		},
	}
	cleanupCmd.Flags().IntVar(&batchSize, "batch-size", 100, "queued deletions per run")
	cleanupCmd.Flags().IntVar(&maxAttempts, "max-attempts", 10, "skip entries with this many failed attempts")
	return cleanupCmd
}
