package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"booksync/core/cache"
	"booksync/core/config"
	"booksync/core/database"
	"booksync/core/events"
	"booksync/core/logger"
	"booksync/feature/apply"
	"booksync/feature/compare"
	"booksync/feature/conflict"
	"booksync/feature/library"
	"booksync/feature/validate"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncPlatform         string
	syncStrategy         string
	syncConflictStrategy string
	syncDryRun           bool
)

// syncCmd reconciles a platform export file into the library.
var syncCmd = &cobra.Command{
	Use:   "sync <records.json>",
	Short: "Sync a platform export into the library",
	Long: `Sync validates the raw records in the given JSON file, compares them
against the stored library, resolves conflicts, and applies the changes.

Examples:
  # Merge a Readmoo export
  booksync sync export.json --platform readmoo

  # Preview without writing
  booksync sync export.json --platform kobo --dry-run

  # Overwrite the library with the export
  booksync sync export.json --platform bookwalker --strategy OVERWRITE`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		logg, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: "console"})
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		defer logg.Sync()

		raws, err := readRecords(args[0])
		if err != nil {
			return err
		}

		strategy, err := apply.ParseStrategy(syncStrategy)
		if err != nil {
			return err
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		store := library.NewStore(db, logg)
		if err := store.AutoMigrate(); err != nil {
			return err
		}

		ctx := context.Background()
		bus := events.NewBus(0, logg)
		defer bus.Close()
		cacheMgr := cache.NewManager(cfg.Cache, nil, logg)
		validator := validate.NewValidator(cfg.Validation, cacheMgr, bus, logg)

		validation, err := validator.ValidateBatch(ctx, raws, syncPlatform)
		if err != nil {
			return err
		}
		logg.Info("Validation finished",
			zap.Int("total", validation.Total),
			zap.Int("valid", validation.Valid),
			zap.Int("invalid", validation.Invalid))
		incoming := validation.ValidRecords()
		if len(incoming) == 0 {
			return fmt.Errorf("no records passed validation")
		}

		current, err := store.ListByPlatform(ctx, syncPlatform)
		if err != nil {
			return err
		}
		engine := compare.NewEngine(compare.Config{}, logg)
		set, err := engine.Diff(incoming, current)
		if err != nil {
			return err
		}
		logg.Info("Comparison finished",
			zap.Int("added", len(set.Added)),
			zap.Int("modified", len(set.Modified)),
			zap.Int("deleted", len(set.Deleted)),
			zap.Int("unchanged", len(set.Unchanged)))

		detector := conflict.NewDetector(logg)
		conflicts, err := detector.Detect(incoming, current)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			resolver := conflict.NewResolver(cfg.Sync.ConflictHistorySize, logg)
			resolutions, err := resolver.Resolve(conflicts, syncConflictStrategy)
			if err != nil {
				return err
			}
			for _, res := range resolutions {
				logg.Info("Conflict resolved",
					zap.String("id", res.ID),
					zap.Bool("resolved", res.Resolved),
					zap.String("reason", res.Reason))
			}
		}

		if syncDryRun {
			logg.Info("Dry run, nothing applied")
			return nil
		}

		processor := apply.NewProcessor(cfg.Apply, bus, logg)
		stats, err := processor.Apply(ctx, store, set, strategy)
		if err != nil {
			return err
		}
		logg.Info("Sync finished",
			zap.Int("inserted", stats.Inserted),
			zap.Int("updated", stats.Updated),
			zap.Int("deleted", stats.Deleted),
			zap.Int("skipped", len(stats.Skipped)))
		return nil
	},
}

func readRecords(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var raws []map[string]any
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return raws, nil
}

func init() {
	syncCmd.Flags().StringVar(&syncPlatform, "platform", "readmoo", "source platform of the export")
	syncCmd.Flags().StringVar(&syncStrategy, "strategy", "MERGE", "sync strategy (MERGE, OVERWRITE, APPEND)")
	syncCmd.Flags().StringVar(&syncConflictStrategy, "conflict-strategy", conflict.StrategyKeepLatest, "conflict resolution strategy")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report changes without applying them")
	RootCmd.AddCommand(syncCmd)
}
