package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/documents"
	"github.com/ekaya-inc/discograph/pkg/metrics"
	"github.com/ekaya-inc/discograph/pkg/models"
	"github.com/ekaya-inc/discograph/pkg/repositories"
)

// BootstrapBatchSize is the number of documents read and inserted per round trip.
const BootstrapBatchSize = 100

// DocumentSource streams documents for the bootstrapper.
type DocumentSource[T any] interface {
	// Count returns the total number of documents, for progress reporting.
	Count(ctx context.Context) (int64, error)
	// Next returns up to limit documents, or io.EOF when none remain.
	Next(ctx context.Context, limit int) ([]T, error)
}

// BootstrapResult summarizes one bootstrap run.
type BootstrapResult struct {
	Inserted int64
	Skipped  int64
}

// Bootstrapper rebuilds the relation and entity tables from document dumps.
type Bootstrapper interface {
	// BootstrapRelations empties the relation table and fills it from src,
	// assigning sequential ids starting at 1.
	BootstrapRelations(ctx context.Context, src DocumentSource[documents.RelationDocument]) (*BootstrapResult, error)

	// BootstrapEntities empties the entity table and fills it from src.
	BootstrapEntities(ctx context.Context, src DocumentSource[documents.EntityDocument]) (*BootstrapResult, error)
}

type bootstrapper struct {
	relationRepo repositories.RelationRepository
	entityRepo   repositories.EntityRepository
	logger       *zap.Logger
}

// NewBootstrapper creates a new Bootstrapper.
func NewBootstrapper(
	relationRepo repositories.RelationRepository,
	entityRepo repositories.EntityRepository,
	logger *zap.Logger,
) Bootstrapper {
	return &bootstrapper{
		relationRepo: relationRepo,
		entityRepo:   entityRepo,
		logger:       logger.Named("bootstrapper"),
	}
}

var _ Bootstrapper = (*bootstrapper)(nil)

func (b *bootstrapper) BootstrapRelations(ctx context.Context, src DocumentSource[documents.RelationDocument]) (*BootstrapResult, error) {
	if err := b.relationRepo.Truncate(ctx); err != nil {
		return nil, err
	}

	nextID := int64(1)
	return runBootstrap(ctx, b.logger, "relation", src,
		func(doc documents.RelationDocument) (models.RelationRow, error) {
			row, err := relationRowFromDocument(doc)
			if err != nil {
				return row, err
			}
			row.ID = nextID
			nextID++
			return row, nil
		},
		b.relationRepo.BulkInsert)
}

func (b *bootstrapper) BootstrapEntities(ctx context.Context, src DocumentSource[documents.EntityDocument]) (*BootstrapResult, error) {
	if err := b.entityRepo.Truncate(ctx); err != nil {
		return nil, err
	}

	return runBootstrap(ctx, b.logger, "entity", src, entityRecordFromDocument, b.entityRepo.BulkInsert)
}

// runBootstrap copies src into a table in batches of BootstrapBatchSize,
// logging progress after every batch. Documents that fail to convert are
// skipped with a warning.
func runBootstrap[D, R any](
	ctx context.Context,
	logger *zap.Logger,
	table string,
	src DocumentSource[D],
	convert func(D) (R, error),
	insert func(context.Context, []R) (int64, error),
) (*BootstrapResult, error) {
	total, err := src.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s documents: %w", table, err)
	}
	logger.Info("Starting bootstrap", zap.String("table", table), zap.Int64("documents", total))

	result := &BootstrapResult{}
	var processed int64
	for {
		docs, err := src.Next(ctx, BootstrapBatchSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("failed to read %s documents: %w", table, err)
		}

		rows := make([]R, 0, len(docs))
		for _, doc := range docs {
			row, err := convert(doc)
			if err != nil {
				result.Skipped++
				logger.Warn("Skipping invalid document", zap.String("table", table), zap.Error(err))
				continue
			}
			rows = append(rows, row)
		}

		n, err := insert(ctx, rows)
		if err != nil {
			return result, err
		}
		result.Inserted += n
		metrics.BootstrapRows.WithLabelValues(table).Add(float64(n))

		processed += int64(len(docs))
		logger.Info("Processing... "+progress(processed, total), zap.String("table", table))
	}

	logger.Info("Bootstrap complete",
		zap.String("table", table),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("skipped", result.Skipped))
	return result, nil
}

// progress renders "processed / total [percent%]" with three decimals.
func progress(processed, total int64) string {
	pct := 100.0
	if total > 0 {
		pct = float64(processed) / float64(total) * 100
	}
	return fmt.Sprintf("%d / %d [%.3f%%]", processed, total, pct)
}

func relationRowFromDocument(doc documents.RelationDocument) (models.RelationRow, error) {
	oneKind, err := models.ParseEntityKind(doc.EntityOneType)
	if err != nil {
		return models.RelationRow{}, err
	}
	twoKind, err := models.ParseEntityKind(doc.EntityTwoType)
	if err != nil {
		return models.RelationRow{}, err
	}
	role, err := models.ParseRole(doc.Role)
	if err != nil {
		return models.RelationRow{}, err
	}
	return models.RelationRow{
		EntityOne: models.Entity{Kind: oneKind, ID: doc.EntityOneID},
		EntityTwo: models.Entity{Kind: twoKind, ID: doc.EntityTwoID},
		Role:      role,
		Year:      doc.Year,
		ReleaseID: doc.ReleaseID,
	}, nil
}

func entityRecordFromDocument(doc documents.EntityDocument) (models.EntityRecord, error) {
	kind, err := models.ParseEntityKind(doc.Kind)
	if err != nil {
		return models.EntityRecord{}, err
	}
	return models.EntityRecord{Entity: models.Entity{Kind: kind, ID: doc.ID}, Name: doc.Name}, nil
}
