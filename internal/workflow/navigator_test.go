package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

func TestNavigatorAutoSwitchesOnForwardTransitions(t *testing.T) {
	store := NewStore(testSession())
	nav := NewNavigator(store)
	assert.Equal(t, ScreenHome, nav.Active())
	assert.Equal(t, "", nav.StepIndicator())

	require.NoError(t, nav.Navigate(ScreenGenerate))
	require.NoError(t, store.Dispatch(PackageGenerated{Package: testPackage()}))
	assert.Equal(t, ScreenGenerate, nav.Active(), "results alone must not switch screens")

	require.NoError(t, store.Dispatch(ContinueToProcess{}))
	assert.Equal(t, ScreenProcess, nav.Active())
	assert.Equal(t, "Step 2 of 4", nav.StepIndicator())
	assert.Equal(t, "in progress", nav.Marker(ScreenProcess))

	require.NoError(t, store.Dispatch(ProcessingSucceeded{Result: successResult()}))
	require.NoError(t, store.Dispatch(ContinueToReconcile{}))
	assert.Equal(t, ScreenRecon, nav.Active())

	require.NoError(t, nav.Navigate(ScreenStatus))
	require.NoError(t, store.Dispatch(ReconSucceeded{Result: &types.ReconResult{Status: "success"}}))
	assert.Equal(t, ScreenRecon, nav.Active())
	assert.Equal(t, "Step 4 of 4", nav.StepIndicator())
	assert.Equal(t, "done", nav.Marker(ScreenRecon))
}

func TestNavigatorKeepsManualChoice(t *testing.T) {
	store := NewStore(testSession())
	nav := NewNavigator(store)
	require.NoError(t, store.Dispatch(PackageGenerated{Package: testPackage()}))
	require.NoError(t, store.Dispatch(ContinueToProcess{}))

	require.NoError(t, nav.Navigate(ScreenStatus))
	require.NoError(t, store.Dispatch(SetMappings{}))
	require.NoError(t, store.Dispatch(ProcessingSucceeded{Result: successResult()}))
	assert.Equal(t, ScreenStatus, nav.Active())

	require.NoError(t, store.Dispatch(Reset{}))
	assert.Equal(t, ScreenStatus, nav.Active(), "reset is not a forward transition")
}

func TestNavigatorRejectsUnknownScreen(t *testing.T) {
	nav := NewNavigator(NewStore(testSession()))
	assert.Error(t, nav.Navigate(Screen("settings")))
	assert.Equal(t, ScreenHome, nav.Active())
}
