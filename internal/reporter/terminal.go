package reporter

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/five82/ffgo/internal/domain"
)

// TerminalReporter prints colored queue and Smart Scan progress to the
// terminal, one progress bar per active job.
type TerminalReporter struct {
	mu   sync.Mutex
	bars map[uint64]*progressbar.ProgressBar
}

// NewTerminalReporter returns a TerminalReporter.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{bars: make(map[uint64]*progressbar.ProgressBar)}
}

func (t *TerminalReporter) QueueState(state domain.QueueState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[uint64]bool, len(state.Jobs))
	for _, j := range state.Jobs {
		seen[j.ID] = true
		if j.Status != domain.StatusProcessing {
			if bar, ok := t.bars[j.ID]; ok {
				if j.Status == domain.StatusCompleted {
					_ = bar.Finish()
				}
				delete(t.bars, j.ID)
			}
			continue
		}

		bar, ok := t.bars[j.ID]
		if !ok {
			bar = progressbar.NewOptions(100,
				progressbar.OptionSetDescription(color.CyanString("job %d", j.ID)),
				progressbar.OptionShowCount(),
			)
			t.bars[j.ID] = bar
		}
		_ = bar.Set(int(j.Progress))
	}
	for id := range t.bars {
		if !seen[id] {
			delete(t.bars, id)
		}
	}
}

func (t *TerminalReporter) SmartScanProgress(rootPath, batchID string, filesScanned, candidates, processed int) {
	fmt.Printf("%s scan %s: scanned=%d candidates=%d processed=%d\n",
		color.YellowString("[smart-scan]"), rootPath, filesScanned, candidates, processed)
}

func (t *TerminalReporter) Warning(message string) {
	fmt.Println(color.YellowString("warning: ") + message)
}

func (t *TerminalReporter) Error(title, message, context string) {
	fmt.Println(color.RedString("error: ")+title, "-", message)
	if context != "" {
		fmt.Println(color.RedString("  context: ") + context)
	}
}
