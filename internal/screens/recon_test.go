package screens

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/config"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
)

func reconResult() *types.ReconResult {
	return &types.ReconResult{
		Status:          "success",
		TotalRecords:    10,
		MatchedRecords:  9,
		MatchPercentage: 90,
		DownloadURL:     "/reconreport/download/r.xlsx",
		FileName:        "recon_468083.xlsx",
	}
}

func TestReconUsesDefaultRequestID(t *testing.T) {
	fx := newFixture(t)
	fx.backend.recon = func(id string) (*types.ReconResult, error) {
		assert.Equal(t, "468083", id)
		return reconResult(), nil
	}
	r := NewRecon(fx.backend, fx.store, fx.files, fx.log, ReconOptions{RequestID: "468083"})

	_, err := r.Generate(context.Background(), api.Upload{})
	require.NoError(t, err)
	assert.Equal(t, workflow.StageGenerate, fx.store.Stage(), "recon outside reconcile keeps the stage")
	assert.NotNil(t, r.Result())
}

func TestReconCompletesWorkflowWithJobID(t *testing.T) {
	fx := newFixture(t)
	toProcessStage(t, fx)
	require.NoError(t, fx.store.Dispatch(workflow.ProcessingSucceeded{Result: successResult()}))
	require.NoError(t, fx.store.Dispatch(workflow.ContinueToReconcile{}))

	fx.backend.recon = func(id string) (*types.ReconResult, error) {
		assert.Equal(t, "1002", id)
		return reconResult(), nil
	}
	r := NewRecon(fx.backend, fx.store, fx.files, fx.log, ReconOptions{RequestID: "468083"})

	_, err := r.Generate(context.Background(), api.Upload{})
	require.NoError(t, err)
	assert.Equal(t, workflow.StageComplete, fx.store.Stage())
}

func TestReconBannerDismissAndRetry(t *testing.T) {
	fx := newFixture(t)
	fail := true
	fx.backend.recon = func(string) (*types.ReconResult, error) {
		if fail {
			return nil, &api.APIError{StatusCode: 500, Message: "Failed to generate reconciliation report"}
		}
		return reconResult(), nil
	}
	r := NewRecon(fx.backend, fx.store, fx.files, fx.log, ReconOptions{RequestID: "1"})

	_, err := r.Generate(context.Background(), api.Upload{})
	require.Error(t, err)
	assert.Contains(t, r.Banner(), "Failed to generate reconciliation report")

	r.DismissBanner()
	assert.Empty(t, r.Banner())

	_, err = r.Generate(context.Background(), api.Upload{})
	require.Error(t, err)
	assert.NotEmpty(t, r.Banner())

	fail = false
	_, err = r.Generate(context.Background(), api.Upload{})
	require.NoError(t, err)
	assert.Empty(t, r.Banner())
}

func TestReconUploadVariant(t *testing.T) {
	fx := newFixture(t)
	fx.backend.reconFromFile = func(raw api.Upload) (*types.ReconResult, error) {
		assert.Equal(t, "raw.xlsx", raw.Name)
		return reconResult(), nil
	}
	r := NewRecon(fx.backend, fx.store, fx.files, fx.log, ReconOptions{Source: config.ReconUpload})

	_, err := r.Generate(context.Background(), api.Upload{})
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Zero(t, fx.backend.count("recon_file"))

	_, err = r.Generate(context.Background(), api.Upload{Name: "raw.xlsx", Data: []byte("x")})
	require.NoError(t, err)
	assert.Zero(t, fx.backend.count("recon"))
}

func TestReconDownload(t *testing.T) {
	fx := newFixture(t)
	fx.backend.recon = func(string) (*types.ReconResult, error) { return reconResult(), nil }
	fx.backend.download = func(url string) ([]byte, error) {
		assert.Equal(t, "/reconreport/download/r.xlsx", url)
		return []byte("xlsx"), nil
	}
	r := NewRecon(fx.backend, fx.store, fx.files, fx.log, ReconOptions{RequestID: "1"})

	_, err := r.Download(context.Background())
	assert.ErrorIs(t, err, ErrNoReport)

	_, err = r.Generate(context.Background(), api.Upload{})
	require.NoError(t, err)
	path, err := r.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recon_468083.xlsx", filepath.Base(path))
	assert.Equal(t, 1, fx.backend.count("recon"))
}

func TestJobStatusScreen(t *testing.T) {
	fx := newFixture(t)
	fx.backend.jobStatus = func(id string) (*api.JobStatus, error) {
		if id == "404" {
			return nil, api.ErrJobNotFound
		}
		return &api.JobStatus{JobID: id, Status: "RUNNING"}, nil
	}
	j := NewJobStatus(fx.backend, fx.log)

	_, err := j.Check(context.Background(), " ")
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))

	st, err := j.Check(context.Background(), " 77 ")
	require.NoError(t, err)
	assert.Equal(t, "77", st.JobID)
	assert.Equal(t, "running", st.Category())

	_, err = j.Check(context.Background(), "404")
	assert.ErrorIs(t, err, api.ErrJobNotFound)
	assert.Equal(t, "77", j.Last().JobID)
}
