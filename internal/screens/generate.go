package screens

import (
	"context"
	"fmt"
	"time"

	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
	"github.com/ginjaninja78/fbdi-workflow/pkg/utils"
)

// Generate builds the FBDI archive. The archive stays in memory until the
// user downloads it.
type Generate struct {
	guard
	backend Backend
	store   *workflow.Store
	files   *utils.FileManager
	log     logging.Logger
	now     func() time.Time
}

// NewGenerate creates the package generation controller.
func NewGenerate(backend Backend, store *workflow.Store, files *utils.FileManager, log logging.Logger) *Generate {
	return &Generate{
		backend: backend,
		store:   store,
		files:   files,
		log:     log.With("generate"),
		now:     time.Now,
	}
}

// Submit generates the archive for cfg and stores it.
func (g *Generate) Submit(ctx context.Context, cfg types.SessionConfig) (*types.GeneratedPackage, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.release()

	raw, err := loadSource(cfg)
	if err != nil {
		return nil, err
	}
	if err := g.store.Dispatch(workflow.SetSession{Config: cfg}); err != nil {
		return nil, err
	}

	start := g.now()
	payload, err := g.backend.GenerateFromType(ctx, cfg, raw)
	if err != nil {
		g.log.Warn("generation failed", "project", cfg.ProjectName, "template", cfg.TemplateType, "error", err)
		return nil, fmt.Errorf("failed to generate FBDI package: %w", err)
	}

	pkg := &types.GeneratedPackage{
		Payload:     payload,
		FileName:    cfg.PackageFileName(),
		Session:     cfg,
		GeneratedAt: g.now(),
	}
	if err := g.store.Dispatch(workflow.PackageGenerated{Package: pkg}); err != nil {
		return nil, err
	}

	g.log.Info("package generated",
		"file", pkg.FileName,
		"bytes", pkg.Size(),
		"elapsed", pkg.GeneratedAt.Sub(start).String(),
	)
	return pkg, nil
}

// Package returns the stored archive, or nil.
func (g *Generate) Package() *types.GeneratedPackage {
	return g.store.State().Package
}

// Complete reports whether an archive is ready.
func (g *Generate) Complete() bool {
	return g.store.State().GenerationComplete
}

// Download writes the stored archive to the output directory without calling
// the backend again.
func (g *Generate) Download() (string, error) {
	pkg := g.Package()
	if pkg == nil {
		return "", workflow.ErrNoPackage
	}
	path, err := g.files.SaveArtifact(pkg.FileName, pkg.Payload)
	if err != nil {
		return "", err
	}
	g.log.Info("package saved", "path", path)
	return path, nil
}

// Continue moves the workflow to the process stage.
func (g *Generate) Continue() error {
	return g.store.Dispatch(workflow.ContinueToProcess{})
}

// Reset starts the workflow over.
func (g *Generate) Reset() error {
	return g.store.Dispatch(workflow.Reset{})
}
