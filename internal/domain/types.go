// Package domain holds the shared data model: presets, jobs, queue
// snapshots, Smart Scan batches, and the media-info cache entry shape.
package domain

import "time"

// VideoEncoder identifies the target video codec/implementation.
type VideoEncoder string

const (
	EncoderH264Software      VideoEncoder = "h264-software"
	EncoderHEVCHardwareNVIDIA VideoEncoder = "hevc-hardware-nvidia"
	EncoderAV1Software       VideoEncoder = "av1-software"
	EncoderStreamCopy        VideoEncoder = "stream-copy"
)

// RateControlMode is the video rate-control strategy.
type RateControlMode string

const (
	RateControlCQ  RateControlMode = "constant-quality"
	RateControlCCQ RateControlMode = "constrained-quality"
	// RateControlCbr and RateControlVbr are legacy aliases. The composer
	// treats them identically to the bitrate family.
	RateControlCbr RateControlMode = "constant-bitrate"
	RateControlVbr RateControlMode = "variable-bitrate"
)

// TwoPass enumerates the two-pass encoding state.
type TwoPass string

const (
	TwoPassNone TwoPass = "none"
	TwoPassOne  TwoPass = "1"
	TwoPassTwo  TwoPass = "2"
)

// AudioCodec is the target audio codec.
type AudioCodec string

const (
	AudioStreamCopy AudioCodec = "stream-copy"
	AudioAAC        AudioCodec = "aac"
)

// LoudnessProfile selects loudnorm defaults.
type LoudnessProfile string

const (
	LoudnessNone          LoudnessProfile = "none"
	LoudnessCNBroadcast   LoudnessProfile = "cnBroadcast"
	LoudnessEBUR128       LoudnessProfile = "ebuR128"
)

// SubtitleStrategy controls subtitle handling.
type SubtitleStrategy string

const (
	SubtitleKeep   SubtitleStrategy = "keep"
	SubtitleDrop   SubtitleStrategy = "drop"
	SubtitleBurnIn SubtitleStrategy = "burn-in"
)

// SeekMode selects where a seek is applied relative to -i.
type SeekMode string

const (
	SeekBeforeInput SeekMode = "before-input"
	SeekAfterInput  SeekMode = "after-input"
)

// DurationMode selects how an output duration is bounded.
type DurationMode string

const (
	DurationLength    DurationMode = "length"
	DurationUntilTime DurationMode = "until-time"
)

// VideoSpec is the video section of a Preset.
type VideoSpec struct {
	Encoder         VideoEncoder    `json:"encoder"`
	RateControl     RateControlMode `json:"rateControl"`
	Quality         int             `json:"quality"`
	Speed           string          `json:"speed,omitempty"`
	Tune            string          `json:"tune,omitempty"`
	Profile         string          `json:"profile,omitempty"`
	Level           string          `json:"level,omitempty"`
	BitrateKbps     int             `json:"bitrateKbps,omitempty"`
	MaxBitrateKbps  int             `json:"maxBitrateKbps,omitempty"`
	BufSizeKbits    int             `json:"bufSizeKbits,omitempty"`
	TwoPass         TwoPass         `json:"twoPass,omitempty"`
	GOPSize         int             `json:"gopSize,omitempty"`
	BFrames         int             `json:"bFrames,omitempty"`
	PixFmt          string          `json:"pixFmt,omitempty"`
}

// AudioSpec is the audio section of a Preset.
type AudioSpec struct {
	Codec          AudioCodec      `json:"codec"`
	BitrateKbps    int             `json:"bitrateKbps,omitempty"`
	SampleRateHz   int             `json:"sampleRateHz,omitempty"`
	Channels       int             `json:"channels,omitempty"`
	ChannelLayout  string          `json:"channelLayout,omitempty"`
	Loudness       LoudnessProfile `json:"loudness,omitempty"`
	LoudnessTargetI   *float64     `json:"loudnessTargetI,omitempty"`
	LoudnessRangeLRA  *float64     `json:"loudnessRangeLra,omitempty"`
	LoudnessTruePeakTP *float64    `json:"loudnessTruePeakTp,omitempty"`
}

// FilterSpec is the filter section of a Preset.
type FilterSpec struct {
	Scale         string `json:"scale,omitempty"`
	Crop          string `json:"crop,omitempty"`
	FPS           string `json:"fps,omitempty"`
	VFChain       string `json:"vfChain,omitempty"`
	AFChain       string `json:"afChain,omitempty"`
	FilterComplex string `json:"filterComplex,omitempty"`
}

// TimelineSpec is the input timeline section of a Preset.
type TimelineSpec struct {
	SeekMode     SeekMode     `json:"seekMode,omitempty"`
	SeekPosition float64      `json:"seekPosition,omitempty"`
	DurationMode DurationMode `json:"durationMode,omitempty"`
	Duration     float64      `json:"duration,omitempty"`
	AccurateSeek bool         `json:"accurateSeek,omitempty"`
}

// StreamMapping is one -map/-disposition/-metadata assignment group.
// Metadata holds preformatted "key=value" pairs in emission order, not
// a map, so argument composition stays deterministic.
type StreamMapping struct {
	Maps         []string `json:"maps,omitempty"`
	Dispositions []string `json:"dispositions,omitempty"`
	Metadata     []string `json:"metadata,omitempty"`
}

// OverwriteBehavior selects the ffmpeg output-overwrite flag.
type OverwriteBehavior string

const (
	// OverwriteUnset behaves like OverwriteAlways: ffmpeg runs
	// unattended behind -nostdin, so an unconfigured preset must not
	// block waiting for a prompt that will never come.
	OverwriteUnset  OverwriteBehavior = ""
	OverwriteAlways OverwriteBehavior = "overwrite"
	OverwriteNever  OverwriteBehavior = "no-overwrite"
	OverwriteAsk    OverwriteBehavior = "ask"
)

// GlobalSpec is the global ffmpeg flag section of a Preset: overwrite
// behavior, log verbosity, banner, and diagnostic report.
type GlobalSpec struct {
	OverwriteBehavior OverwriteBehavior `json:"overwriteBehavior,omitempty"`
	LogLevel          string            `json:"logLevel,omitempty"`
	HideBanner        bool              `json:"hideBanner,omitempty"`
	EnableReport      bool              `json:"enableReport,omitempty"`
}

// PresetStats are cumulative usage statistics, updated only on
// successful job completion.
type PresetStats struct {
	Count              int     `json:"count"`
	TotalInputSizeMB   float64 `json:"totalInputSizeMB"`
	TotalOutputSizeMB  float64 `json:"totalOutputSizeMB"`
	TotalTimeSeconds   float64 `json:"totalTimeSeconds"`
}

// Preset is a reusable encoding specification bound to a stable id.
type Preset struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Video       VideoSpec     `json:"video"`
	Audio       AudioSpec     `json:"audio"`
	Filters     FilterSpec    `json:"filters"`
	Subtitles   SubtitleStrategy `json:"subtitles"`
	Container   string        `json:"container,omitempty"`
	MuxerFlags  []string      `json:"muxerFlags,omitempty"`
	Timeline    TimelineSpec  `json:"timeline"`
	Mapping     StreamMapping `json:"mapping"`
	Global      GlobalSpec    `json:"global,omitempty"`
	HWAccel     string        `json:"hwAccel,omitempty"`
	HWAccelDevice string      `json:"hwAccelDevice,omitempty"`
	HWAccelOutputFormat string `json:"hwAccelOutputFormat,omitempty"`
	BitstreamFilters []string `json:"bitstreamFilters,omitempty"`
	Stats       PresetStats   `json:"stats"`
	MaxConcurrency int        `json:"maxConcurrency,omitempty"`
	AdvancedOverride bool     `json:"advancedOverride,omitempty"`
	AdvancedTemplate string   `json:"advancedTemplate,omitempty"`
}

// JobType distinguishes video from image Smart Scan candidates.
type JobType string

const (
	JobTypeVideo JobType = "video"
	JobTypeImage JobType = "image"
)

// JobSource records job provenance.
type JobSource string

const (
	JobSourceUser      JobSource = "user-submitted"
	JobSourceBatchScan JobSource = "batch-scan"
)

// JobStatus is the job state machine's current state.
type JobStatus string

const (
	StatusWaiting    JobStatus = "waiting"
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusPaused     JobStatus = "paused"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusSkipped    JobStatus = "skipped"
	StatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether status admits no further transitions other
// than an explicit restart.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusCancelled:
		return true
	default:
		return false
	}
}

// WaitMetadata is the minimum state required to resume a paused job.
type WaitMetadata struct {
	LastProgressPercent float64 `json:"lastProgressPercent"`
	ProcessedSeconds    float64 `json:"processedSeconds"`
	TempOutputPath      string  `json:"tempOutputPath"`
}

// MediaInfo is the probed media-info cache entry shape.
type MediaInfo struct {
	DurationSeconds float64 `json:"durationSeconds"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	FrameRate       float64 `json:"frameRate,omitempty"`
	VideoCodec      string  `json:"videoCodec,omitempty"`
	AudioCodec      string  `json:"audioCodec,omitempty"`
	SizeBytes       int64   `json:"sizeBytes,omitempty"`
}

// Job is one invocation of an external encoder against one input file
// under one preset.
type Job struct {
	ID                uint64        `json:"id"`
	SourcePath        string        `json:"sourcePath"`
	Type              JobType       `json:"type"`
	Source            JobSource     `json:"source"`
	QueueOrder        *int          `json:"queueOrder,omitempty"`
	OriginalSizeMB    float64       `json:"originalSizeMB"`
	OriginalCodec     string        `json:"originalCodec,omitempty"`
	PresetID          string        `json:"presetId"`
	Status            JobStatus     `json:"status"`
	Progress          float64       `json:"progress"`
	StartTime         *time.Time    `json:"startTime,omitempty"`
	EndTime           *time.Time    `json:"endTime,omitempty"`
	OutputSizeMB      float64       `json:"outputSizeMB,omitempty"`
	Log               []string      `json:"log,omitempty"`
	LogTail           string        `json:"logTail,omitempty"`
	SkipReason        string        `json:"skipReason,omitempty"`
	InputPath         string        `json:"inputPath"`
	OutputPath        string        `json:"outputPath"`
	LastCommand       []string      `json:"lastCommand,omitempty"`
	MediaInfo         *MediaInfo    `json:"mediaInfo,omitempty"`
	EstimatedSeconds  *float64      `json:"estimatedSeconds,omitempty"`
	PreviewPath        string       `json:"previewPath,omitempty"`
	FailureReason      string       `json:"failureReason,omitempty"`
	BatchID            string       `json:"batchId,omitempty"`
	WaitMetadata       *WaitMetadata `json:"waitMetadata,omitempty"`
}

// MaxLogLines bounds the rolling log buffer.
const MaxLogLines = 200

// MaxLogTailBytes bounds the textual tail.
const MaxLogTailBytes = 16 * 1024

// QueueState is the visible snapshot of all known jobs.
type QueueState struct {
	Jobs []Job `json:"jobs"`
}

// SmartScanStatus is the Smart Scan batch's lifecycle state.
type SmartScanStatus string

const (
	ScanStatusScanning SmartScanStatus = "scanning"
	ScanStatusRunning  SmartScanStatus = "running"
	ScanStatusCompleted SmartScanStatus = "completed"
	ScanStatusFailed   SmartScanStatus = "failed"
)

// SmartScanBatch is a collection of jobs spawned by a single Smart Scan.
type SmartScanBatch struct {
	ID            string          `json:"id"`
	RootDirectory string          `json:"rootDirectory"`
	Status        SmartScanStatus `json:"status"`
	FilesScanned  int             `json:"filesScanned"`
	Candidates    int             `json:"candidates"`
	Processed     int             `json:"processed"`
	JobIDs        []uint64        `json:"jobIds"`
	StartTimeMs   int64           `json:"startTimeMs"`
	EndTimeMs     int64           `json:"endTimeMs,omitempty"`
}

// SmartScanConfig configures a Smart Scan run.
type SmartScanConfig struct {
	MinVideoSizeMB   float64 `json:"minVideoSizeMb"`
	MinImageSizeKB   float64 `json:"minImageSizeKb"`
	MinSavingRatio   float64 `json:"minSavingRatio"`
	PresetID         string  `json:"presetId"`
}

// TaskbarProgressMode selects how batch-level progress is estimated for
// OS taskbar integration.
type TaskbarProgressMode string

const (
	TaskbarBySize          TaskbarProgressMode = "bySize"
	TaskbarByDuration      TaskbarProgressMode = "byDuration"
	TaskbarByEstimatedTime TaskbarProgressMode = "byEstimatedTime"
)

// ExternalToolKind names one of the three external binaries the core drives.
type ExternalToolKind string

const (
	ToolFfmpeg  ExternalToolKind = "ffmpeg"
	ToolFfprobe ExternalToolKind = "ffprobe"
	ToolAvifenc ExternalToolKind = "avifenc"
)

// ExternalToolStatus describes the resolution state of one external
// tool: where it was found, whether an update or download is pending,
// and the last error encountered resolving it.
type ExternalToolStatus struct {
	Kind                ExternalToolKind `json:"kind"`
	ResolvedPath        string           `json:"resolvedPath,omitempty"`
	Source              string           `json:"source,omitempty"`
	Version             string           `json:"version,omitempty"`
	UpdateAvailable     bool             `json:"updateAvailable"`
	AutoDownloadEnabled bool             `json:"autoDownloadEnabled"`
	AutoUpdateEnabled   bool             `json:"autoUpdateEnabled"`
	DownloadInProgress  bool             `json:"downloadInProgress"`
	LastDownloadError   string           `json:"lastDownloadError,omitempty"`
	LastDownloadMessage string           `json:"lastDownloadMessage,omitempty"`
}

// AppSettings is the settings sidecar shape.
type AppSettings struct {
	Tools                    map[ExternalToolKind]ToolSettings `json:"tools"`
	SmartScanDefaults        SmartScanConfig                   `json:"smartScanDefaults"`
	PreviewCapturePercent    float64                            `json:"previewCapturePercent"`
	DefaultQueuePresetID     string                             `json:"defaultQueuePresetId,omitempty"`
	MaxParallelJobs          int                                `json:"maxParallelJobs,omitempty"`
	ProgressUpdateIntervalMs int                                `json:"progressUpdateIntervalMs,omitempty"`
	TaskbarProgressMode      TaskbarProgressMode                `json:"taskbarProgressMode"`
}

// ToolSettings is the per-tool configuration portion of AppSettings.
type ToolSettings struct {
	CustomPath     string `json:"customPath,omitempty"`
	AutoDownload   bool   `json:"autoDownload"`
	AutoUpdate     bool   `json:"autoUpdate"`
}

// DefaultAppSettings returns the documented defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Tools:                 map[ExternalToolKind]ToolSettings{},
		PreviewCapturePercent: 25,
		TaskbarProgressMode:   TaskbarByEstimatedTime,
	}
}
