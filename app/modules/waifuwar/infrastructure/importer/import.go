package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

// Catalog is the part of the waifu war service the importer writes to.
type Catalog interface {
	AddEntrant(ctx context.Context, input waifuwarservice.AddEntrantInput) (*waifuwartypes.Entrant, error)
	AddAliases(ctx context.Context, canonical string, aliases ...string) ([]waifuwartypes.AliasOutcome, error)
}

// Failure is a row that could not be imported.
type Failure struct {
	Line int
	Name string
	Err  error
}

// Report summarizes an import. Skipped rows name entrants already in the catalog.
type Report struct {
	Added          []string
	Skipped        []string
	Failed         []Failure
	AliasesAdded   int
	AliasConflicts []waifuwartypes.AliasOutcome
}

// Importer adds parsed rows to the catalog one by one.
type Importer struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewImporter(catalog Catalog, logger *slog.Logger) *Importer {
	return &Importer{catalog: catalog, logger: logger}
}

// Import adds every row. Existing entrants are skipped but still get the
// row's aliases. Domain failures are collected per row; an infrastructure
// error aborts the import and is returned with the partial report.
func (im *Importer) Import(ctx context.Context, rows []Row) (*Report, error) {
	report := &Report{}
	for _, row := range rows {
		_, err := im.catalog.AddEntrant(ctx, waifuwarservice.AddEntrantInput{
			Name:        row.Name,
			Description: row.Description,
			Group:       row.Group,
			ImageRef:    row.ImageRef,
		})
		if err != nil {
			if !waifuwarservice.IsDomainError(err) {
				return report, fmt.Errorf("line %d: failed to add %q: %w", row.Line, row.Name, err)
			}
			if !isDuplicate(err) {
				report.Failed = append(report.Failed, Failure{Line: row.Line, Name: row.Name, Err: err})
				continue
			}
			report.Skipped = append(report.Skipped, row.Name)
		} else {
			report.Added = append(report.Added, row.Name)
		}

		if len(row.Aliases) == 0 {
			continue
		}
		outcomes, err := im.catalog.AddAliases(ctx, row.Name, row.Aliases...)
		if err != nil {
			if !waifuwarservice.IsDomainError(err) {
				return report, fmt.Errorf("line %d: failed to alias %q: %w", row.Line, row.Name, err)
			}
			report.Failed = append(report.Failed, Failure{Line: row.Line, Name: row.Name, Err: err})
			continue
		}
		for _, o := range outcomes {
			switch {
			case o.Added:
				report.AliasesAdded++
			case o.Canonical != row.Name:
				report.AliasConflicts = append(report.AliasConflicts, o)
			}
		}
	}

	im.logger.InfoContext(ctx, "Catalog import finished",
		attr.Int("added", len(report.Added)),
		attr.Int("skipped", len(report.Skipped)),
		attr.Int("failed", len(report.Failed)),
		attr.Int("aliases_added", report.AliasesAdded),
	)
	return report, nil
}

func isDuplicate(err error) bool {
	var dup *waifuwarservice.DuplicateNameError
	return errors.As(err, &dup)
}
