package reporter

import (
	"github.com/rs/zerolog"

	"github.com/five82/ffgo/internal/domain"
)

// LogReporter writes engine events as structured zerolog entries.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter returns a LogReporter writing through logger.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (l *LogReporter) QueueState(state domain.QueueState) {
	for _, j := range state.Jobs {
		if j.Status == domain.StatusProcessing {
			l.logger.Debug().Uint64("job", j.ID).Float64("progress", j.Progress).Msg("job progress")
		}
	}
}

func (l *LogReporter) SmartScanProgress(rootPath, batchID string, filesScanned, candidates, processed int) {
	l.logger.Info().
		Str("root", rootPath).
		Str("batch", batchID).
		Int("filesScanned", filesScanned).
		Int("candidates", candidates).
		Int("processed", processed).
		Msg("smart scan progress")
}

func (l *LogReporter) Warning(message string) {
	l.logger.Warn().Msg(message)
}

func (l *LogReporter) Error(title, message, context string) {
	l.logger.Error().Str("context", context).Msg(title + ": " + message)
}
