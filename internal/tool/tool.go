// Package tool resolves the three external binaries the core drives
// (ffmpeg, ffprobe, avifenc) via a custom-path override or PATH lookup.
// An auto-download manager is out of scope; this package only resolves
// PATH and custom-path sources and reports a (path, source, downloaded)
// triple for each.
package tool

import (
	"fmt"
	"os/exec"

	"github.com/five82/ffgo/internal/domain"
)

// SourceTag identifies how a resolved binary path was obtained.
type SourceTag string

const (
	SourcePathResolution SourceTag = "path-resolution"
	SourceCustomPath     SourceTag = "custom-path"
	SourceDownload       SourceTag = "download"
)

func binaryName(kind domain.ExternalToolKind) string {
	switch kind {
	case domain.ToolFfmpeg:
		return "ffmpeg"
	case domain.ToolFfprobe:
		return "ffprobe"
	case domain.ToolAvifenc:
		return "avifenc"
	default:
		return string(kind)
	}
}

// Resolver resolves external tool binaries using per-tool settings.
type Resolver struct {
	Settings map[domain.ExternalToolKind]domain.ToolSettings
}

// NewResolver returns a Resolver configured from AppSettings.
func NewResolver(settings domain.AppSettings) *Resolver {
	return &Resolver{Settings: settings.Tools}
}

// EnsureAvailable resolves kind to a usable binary path, reporting
// which source satisfied it and whether a download occurred. Download
// is delegated to an external tool manager that is out of scope here;
// when a custom path is configured but missing, and no download
// manager has produced a binary, this returns an error.
func (r *Resolver) EnsureAvailable(kind domain.ExternalToolKind) (path string, source SourceTag, downloaded bool, err error) {
	name := binaryName(kind)
	settings := r.Settings[kind]

	if settings.CustomPath != "" {
		if !verifyExecutable(settings.CustomPath) {
			return "", "", false, fmt.Errorf("%s does not appear to be available at %q", name, settings.CustomPath)
		}
		return settings.CustomPath, SourceCustomPath, false, nil
	}

	resolved, lookErr := exec.LookPath(name)
	if lookErr == nil && verifyExecutable(resolved) {
		return resolved, SourcePathResolution, false, nil
	}

	return "", "", false, fmt.Errorf("%s not found on PATH and no custom path configured", name)
}

// verifyExecutable runs a cheap version probe to confirm the binary is
// actually executable on this system.
func verifyExecutable(path string) bool {
	cmd := exec.Command(path, "-version")
	return cmd.Run() == nil
}

// Status builds the ExternalToolStatus record describing kind's current
// resolution state.
func (r *Resolver) Status(kind domain.ExternalToolKind) domain.ExternalToolStatus {
	settings := r.Settings[kind]
	status := domain.ExternalToolStatus{
		Kind:                kind,
		AutoDownloadEnabled: settings.AutoDownload,
		AutoUpdateEnabled:   settings.AutoUpdate,
	}
	path, source, _, err := r.EnsureAvailable(kind)
	if err != nil {
		status.LastDownloadError = err.Error()
		return status
	}
	status.ResolvedPath = path
	status.Source = string(source)
	return status
}
