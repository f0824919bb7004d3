package cmd

import (
	"context"
	"fmt"

	"booksync/core/cache"
	"booksync/core/config"
	"booksync/core/events"
	"booksync/core/logger"
	"booksync/feature/validate"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var validatePlatform string

// validateCmd validates a platform export file without touching the library.
var validateCmd = &cobra.Command{
	Use:   "validate <records.json>",
	Short: "Validate a platform export without syncing",
	Long: `Validate runs the raw records in the given JSON file through the
validation and normalization pipeline and reports the outcome per record.

Example:
  booksync validate export.json --platform kobo`,
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

		bus := events.NewBus(0, logg)
		defer bus.Close()
		cacheMgr := cache.NewManager(cfg.Cache, nil, logg)
		validator := validate.NewValidator(cfg.Validation, cacheMgr, bus, logg)

		result, err := validator.ValidateBatch(context.Background(), raws, validatePlatform)
		if err != nil {
			return err
		}

		for _, item := range result.Items {
			if item.Outcome == nil || item.Outcome.IsValid {
				continue
			}
			for _, issue := range item.Outcome.Errors {
				logg.Warn("Record invalid",
					zap.Int("index", item.Index),
					zap.String("field", issue.Field),
					zap.String("message", issue.Message))
			}
		}
		logg.Info("Validation finished",
			zap.String("platform", result.Platform),
			zap.Int("total", result.Total),
			zap.Int("valid", result.Valid),
			zap.Int("invalid", result.Invalid),
			zap.Duration("elapsed", result.Elapsed))
		if result.Invalid > 0 {
			return fmt.Errorf("%d of %d records failed validation", result.Invalid, result.Total)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validatePlatform, "platform", "readmoo", "source platform of the export")
	RootCmd.AddCommand(validateCmd)
}
