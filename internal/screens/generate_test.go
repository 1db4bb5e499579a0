package screens

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
)

func TestGenerateStoresPackageWithoutSaving(t *testing.T) {
	fx := newFixture(t)
	fx.backend.generate = func(types.SessionConfig) ([]byte, error) { return []byte("PK"), nil }
	g := NewGenerate(fx.backend, fx.store, fx.files, fx.log)

	pkg, err := g.Submit(context.Background(), testSession(t))
	require.NoError(t, err)
	assert.Equal(t, "Acme_AR_FBDI.zip", pkg.FileName)
	assert.True(t, g.Complete())
	assert.Equal(t, workflow.StageGenerate, fx.store.Stage())

	entries, err := os.ReadDir(fx.files.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	path, err := g.Download()
	require.NoError(t, err)
	assert.Equal(t, "Acme_AR_FBDI.zip", filepath.Base(path))
	assert.Equal(t, 1, fx.backend.count("generate"))
}

func TestGenerateFailureLeavesIncomplete(t *testing.T) {
	fx := newFixture(t)
	fx.backend.generate = func(types.SessionConfig) ([]byte, error) { return nil, errors.New("boom") }
	g := NewGenerate(fx.backend, fx.store, fx.files, fx.log)

	_, err := g.Submit(context.Background(), testSession(t))
	assert.Error(t, err)
	assert.False(t, g.Complete())
	assert.Nil(t, g.Package())

	_, err = g.Download()
	assert.ErrorIs(t, err, workflow.ErrNoPackage)
	assert.ErrorIs(t, g.Continue(), workflow.ErrNoPackage)
}

func TestGenerateContinueAndReset(t *testing.T) {
	fx := newFixture(t)
	fx.backend.generate = func(types.SessionConfig) ([]byte, error) { return []byte("PK"), nil }
	g := NewGenerate(fx.backend, fx.store, fx.files, fx.log)

	_, err := g.Submit(context.Background(), testSession(t))
	require.NoError(t, err)
	require.NoError(t, g.Continue())
	assert.Equal(t, workflow.StageProcess, fx.store.Stage())

	require.NoError(t, g.Reset())
	assert.Equal(t, workflow.StageGenerate, fx.store.Stage())
	assert.Nil(t, g.Package())
	assert.False(t, g.Complete())
}
