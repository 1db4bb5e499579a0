package screens

import (
	"context"
	"fmt"

	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/sheet"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
)

// Preview shows which source columns the backend maps to each template column.
type Preview struct {
	guard
	backend Backend
	store   *workflow.Store
	log     logging.Logger
}

// NewPreview creates the mapping preview controller.
func NewPreview(backend Backend, store *workflow.Store, log logging.Logger) *Preview {
	return &Preview{backend: backend, store: store, log: log.With("preview")}
}

// Submit requests the mapping preview for cfg and replaces the stored
// mappings with the answer.
func (p *Preview) Submit(ctx context.Context, cfg types.SessionConfig) ([]types.MappingEntry, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	raw, err := loadSource(cfg)
	if err != nil {
		return nil, err
	}
	if err := p.store.Dispatch(workflow.SetSession{Config: cfg}); err != nil {
		return nil, err
	}

	entries, err := p.backend.PreviewMappings(ctx, cfg, raw)
	if err != nil {
		p.log.Warn("preview failed", "project", cfg.ProjectName, "error", err)
		return nil, fmt.Errorf("failed to preview mappings: %w", err)
	}
	if err := p.store.Dispatch(workflow.SetMappings{Entries: entries}); err != nil {
		return nil, err
	}

	p.log.Info("mappings received", "project", cfg.ProjectName, "summary", types.MappingSummary(entries))
	return entries, nil
}

// Mappings returns the stored mapping table.
func (p *Preview) Mappings() []types.MappingEntry {
	return p.store.State().Mappings
}

// Summary returns "N of M columns mapped" for the stored mappings.
func (p *Preview) Summary() string {
	return types.MappingSummary(p.Mappings())
}

// Export writes the stored mappings to a workbook at path.
func (p *Preview) Export(path string) error {
	return sheet.ExportMappings(p.Mappings(), path)
}
