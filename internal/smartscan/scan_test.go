package smartscan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/ffgo/internal/domain"
	"github.com/five82/ffgo/internal/jobstore"
	"github.com/five82/ffgo/internal/presets"
)

func newTestRunner(t *testing.T) (*Runner, *jobstore.Store) {
	t.Helper()
	st := jobstore.New()
	pm, err := presets.NewManager(t.TempDir())
	require.NoError(t, err)
	return &Runner{Store: st, Presets: pm}, st
}

func TestIsAlreadyEfficient(t *testing.T) {
	assert.True(t, isAlreadyEfficient("hevc"))
	assert.True(t, isAlreadyEfficient("HEVC_NVENC"))
	assert.True(t, isAlreadyEfficient("av1"))
	assert.False(t, isAlreadyEfficient("h264"))
	assert.False(t, isAlreadyEfficient(""))
}

func TestEstimateSecondsReturnsNilWithoutHistory(t *testing.T) {
	pm, err := presets.NewManager(t.TempDir())
	require.NoError(t, err)
	_, _ = pm.Save(domain.Preset{ID: "p1"})

	assert.Nil(t, estimateSeconds(pm, "p1", 1000))
	assert.Nil(t, estimateSeconds(pm, "missing", 1000))
}

func TestEstimateSecondsAppliesEncoderAndSpeedFactors(t *testing.T) {
	pm, err := presets.NewManager(t.TempDir())
	require.NoError(t, err)
	_, _ = pm.Save(domain.Preset{
		ID: "p1",
		Video: domain.VideoSpec{
			Encoder: domain.EncoderAV1Software,
			Speed:   "veryslow",
		},
		Stats: domain.PresetStats{TotalInputSizeMB: 1000, TotalTimeSeconds: 1000},
	})

	est := estimateSeconds(pm, "p1", 500)
	require.NotNil(t, est)
	// base = 1s/MB; 500MB * 1.5 (av1) * 1.6 (veryslow) = 1200.
	assert.InDelta(t, 1200.0, *est, 0.01)
}

func TestEstimateSecondsTwoPassDoublesTime(t *testing.T) {
	pm, err := presets.NewManager(t.TempDir())
	require.NoError(t, err)
	_, _ = pm.Save(domain.Preset{
		ID:    "p1",
		Video: domain.VideoSpec{TwoPass: domain.TwoPassTwo},
		Stats: domain.PresetStats{TotalInputSizeMB: 100, TotalTimeSeconds: 100},
	})

	est := estimateSeconds(pm, "p1", 100)
	require.NotNil(t, est)
	assert.InDelta(t, 200.0, *est, 0.01)
}

func TestWalkPass1RegistersCompressedOutputsAsKnown(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "movie.mkv")
	compressed := filepath.Join(dir, "movie.compressed.mkv")
	avif := filepath.Join(dir, "photo.avif")
	numbered := filepath.Join(dir, "clip.compressed (1).mp4")

	for _, p := range []string{plain, compressed, avif, numbered} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	r, st := newTestRunner(t)
	files, err := r.walkPass1(dir)
	require.NoError(t, err)
	assert.Len(t, files, 4)

	assert.True(t, st.IsKnownOutput(compressed))
	assert.True(t, st.IsKnownOutput(avif))
	assert.True(t, st.IsKnownOutput(numbered))
	assert.False(t, st.IsKnownOutput(plain))
}

func TestHandleImageCandidateSkipsExistingAvif(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte("fakejpeg-data"), 0o644))

	r, st := newTestRunner(t)
	st.RegisterBatch(&domain.SmartScanBatch{ID: "b1", Candidates: 1})

	r.handleImageCandidate(context.Background(), "b1", src, ".avif", domain.SmartScanConfig{})

	// src itself has extension .avif in this call's ext argument, exercising
	// the "already AVIF" branch without touching the filesystem further.
	jobs := st.Snapshot().Jobs
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.StatusSkipped, jobs[0].Status)
	assert.Equal(t, "Already AVIF", jobs[0].SkipReason)
}

func TestHandleImageCandidateSkipsUndersizedImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tiny.jpg")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	r, st := newTestRunner(t)
	st.RegisterBatch(&domain.SmartScanBatch{ID: "b1", Candidates: 1})

	r.handleImageCandidate(context.Background(), "b1", src, ".jpg", domain.SmartScanConfig{MinImageSizeKB: 1000})

	jobs := st.Snapshot().Jobs
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.StatusSkipped, jobs[0].Status)
	assert.Contains(t, jobs[0].SkipReason, "Size <")
}

func TestHandleImageCandidateSkipsWhenAvifSiblingExists(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	sibling := filepath.Join(dir, "photo.avif")
	require.NoError(t, os.WriteFile(src, []byte("a reasonably sized fake jpeg payload"), 0o644))
	require.NoError(t, os.WriteFile(sibling, []byte("already here"), 0o644))

	r, st := newTestRunner(t)
	st.RegisterBatch(&domain.SmartScanBatch{ID: "b1", Candidates: 1})

	r.handleImageCandidate(context.Background(), "b1", src, ".jpg", domain.SmartScanConfig{})

	jobs := st.Snapshot().Jobs
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.StatusSkipped, jobs[0].Status)
	assert.Equal(t, "Existing .avif sibling", jobs[0].SkipReason)
	assert.Equal(t, sibling, jobs[0].PreviewPath)
}

func TestHandleVideoCandidateSkipsUndersizedFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.mkv")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	r, st := newTestRunner(t)
	ok := r.handleVideoCandidate(context.Background(), "b1", src, domain.SmartScanConfig{MinVideoSizeMB: 1000})

	assert.False(t, ok)
	jobs := st.Snapshot().Jobs
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.StatusSkipped, jobs[0].Status)
	assert.Contains(t, jobs[0].SkipReason, "Size <")
}
