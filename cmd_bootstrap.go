package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/documents"
	"github.com/ekaya-inc/discograph/pkg/services"
)

var (
	bootstrapRelations string
	bootstrapEntities  string

	bootstrapCmd = &cobra.Command{
		Use:   "bootstrap",
		Short: "Rebuild the relation and entity tables from JSON-lines dumps",
		Long: `Rebuild the relation table (and optionally the entity table) from
JSON-lines document dumps. Files ending in .gz are decompressed on the fly.
Existing rows are removed first; relation ids are reassigned from 1.

Examples:
  discograph bootstrap --relations relations.jsonl.gz
  discograph bootstrap --relations relations.jsonl --entities entities.jsonl`,
		Args: cobra.NoArgs,
		RunE: runBootstrap,
	}
)

func init() {
	bootstrapCmd.Flags().StringVar(&bootstrapRelations, "relations", "",
		"Relation documents (JSON lines, optionally gzip)")
	bootstrapCmd.Flags().StringVar(&bootstrapEntities, "entities", "",
		"Entity name documents (JSON lines, optionally gzip)")
	_ = bootstrapCmd.MarkFlagRequired("relations")
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(); err != nil {
		return err
	}

	bootstrapper := services.NewBootstrapper(a.relationRepo, a.entityRepo, a.logger)

	relations, err := documents.OpenRelations(bootstrapRelations)
	if err != nil {
		return err
	}
	result, err := bootstrapper.BootstrapRelations(ctx, relations)
	if closeErr := relations.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("relation bootstrap failed: %w", err)
	}
	a.logger.Info("Relations loaded",
		zap.Int64("inserted", result.Inserted),
		zap.Int64("skipped", result.Skipped))

	if bootstrapEntities == "" {
		return nil
	}

	entities, err := documents.OpenEntities(bootstrapEntities)
	if err != nil {
		return err
	}
	result, err = bootstrapper.BootstrapEntities(ctx, entities)
	if closeErr := entities.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("entity bootstrap failed: %w", err)
	}
	a.logger.Info("Entities loaded",
		zap.Int64("inserted", result.Inserted),
		zap.Int64("skipped", result.Skipped))
	return nil
}
