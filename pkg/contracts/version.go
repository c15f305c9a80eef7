// Package contracts pins the identity both ChurnPulse binaries share:
// the semantic version, the derived table format and the API contract
// name. The processor stamps these into run manifests; the web server
// reports them from /api/version.
package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the semantic version of the processor and the web
	// server. Both binaries are cut from the same tree and move
	// together.
	Version = "1.2.0"

	// DataFormatVersion names the derived table layout. A manifest
	// stamped with a different value is re-derived even when the
	// source bytes are unchanged.
	DataFormatVersion = "v1"

	// APIVersion names the HTTP and WebSocket contract.
	APIVersion = "v1"
)

// Release builds stamp these through ldflags:
//
//	-X churnpulse/pkg/contracts.GitCommit=$(git rev-parse --short HEAD)
//	-X churnpulse/pkg/contracts.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// VersionInfo is the full build identity.
type VersionInfo struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildTime  string `json:"build_time"`
	DataFormat string `json:"data_format"`
	APIVersion string `json:"api_version"`

	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// BuildInfo collects the compile-time and runtime identity.
func BuildInfo() VersionInfo {
	return VersionInfo{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildTime:  BuildTime,
		DataFormat: DataFormatVersion,
		APIVersion: APIVersion,
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
}

// Banner is the one-line identity a binary logs or prints at startup.
func Banner(binary string) string {
	return fmt.Sprintf("%s v%s (%s, %s, %s/%s)",
		binary, Version, GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
