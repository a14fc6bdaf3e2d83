// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// set through -ldflags "-X github.com/sustainable-computing-io/gpucounters/internal/version.version=..."
var (
	version   string
	buildTime string
	gitBranch string
	gitCommit string
)

type VersionInfo struct {
	Version   string
	BuildTime string
	GitBranch string
	GitCommit string

	GoVersion string
	GoOS      string
	GoArch    string
}

// Info returns the version information
func Info() VersionInfo {
	return VersionInfo{
		Version:   orDefault(version, "dev"),
		BuildTime: buildTime,
		GitBranch: gitBranch,
		GitCommit: gitCommit,

		GoVersion: runtime.Version(),
		GoOS:      runtime.GOOS,
		GoArch:    runtime.GOARCH,
	}
}

// String renders the info on one line for --version
func (v VersionInfo) String() string {
	return fmt.Sprintf("gpucounters %s (branch: %s, revision: %s, built: %s, %s %s/%s)",
		v.Version, orDefault(v.GitBranch, "unknown"), orDefault(v.GitCommit, "unknown"),
		orDefault(v.BuildTime, "unknown"), v.GoVersion, v.GoOS, v.GoArch)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
