package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/ffgo/internal/domain"
	"github.com/five82/ffgo/internal/jobstore"
)

func TestPresetsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	presets := []domain.Preset{
		{ID: "p1", Name: "Default", Video: domain.VideoSpec{Encoder: domain.EncoderAV1Software, RateControl: domain.RateControlCQ, Quality: 28}},
	}

	require.NoError(t, SavePresets(dir, presets))

	loaded, err := LoadPresets(dir)
	require.NoError(t, err)
	assert.Equal(t, presets, loaded)
}

func TestLoadPresetsMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	loaded, err := LoadPresets(dir)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	settings := domain.DefaultAppSettings()
	settings.MaxParallelJobs = 4
	settings.DefaultQueuePresetID = "p1"

	require.NoError(t, SaveSettings(dir, settings))

	loaded, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestLoadSettingsMissingFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	loaded, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), loaded)
}

func TestQueueStateRoundTripPreservesSizeFields(t *testing.T) {
	dir := t.TempDir()
	state := domain.QueueState{
		Jobs: []domain.Job{
			{ID: 1, SourcePath: "a.mkv", Status: domain.StatusCompleted, OriginalSizeMB: 500, OutputSizeMB: 120},
		},
	}

	require.NoError(t, SaveQueueState(dir, state))

	loaded, err := LoadQueueState(dir)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestRestoreIntoRecoversProcessingJobsAsPaused(t *testing.T) {
	s := jobstore.New()
	state := domain.QueueState{
		Jobs: []domain.Job{
			{ID: 5, SourcePath: "a.mkv", Status: domain.StatusProcessing, Type: domain.JobTypeVideo, OutputPath: "/out/a.compressed.mkv"},
		},
	}

	RestoreInto(s, state)

	job, ok := s.Job(5)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPaused, job.Status)
	require.NotEmpty(t, job.Log)
	assert.Contains(t, job.Log[len(job.Log)-1], "Recovered")
}

func TestRestoreIntoReordersWaitingJobsByPersistedQueueOrder(t *testing.T) {
	s := jobstore.New()
	second := 1
	first := 0
	state := domain.QueueState{
		Jobs: []domain.Job{
			{ID: 10, SourcePath: "b.mkv", Status: domain.StatusWaiting, QueueOrder: &second},
			{ID: 20, SourcePath: "a.mkv", Status: domain.StatusWaiting, QueueOrder: &first},
		},
	}

	RestoreInto(s, state)

	job, ok := s.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, uint64(20), job.ID, "restoring must honor persisted queueOrder, not input slice order")
}

func TestRestoreIntoPassesThroughTerminalJobsUnchanged(t *testing.T) {
	s := jobstore.New()
	state := domain.QueueState{
		Jobs: []domain.Job{
			{ID: 1, SourcePath: "a.mkv", Status: domain.StatusCompleted, OutputSizeMB: 42},
		},
	}

	RestoreInto(s, state)

	job, ok := s.Job(1)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, 42.0, job.OutputSizeMB)
}
