// SPDX-License-Identifier: MIT
//
// Package build carries the metadata stamped into the kaleido binary at
// link time. Release builds set every variable with -ldflags:
//
//	go build -ldflags "-X kaleido/pkg/build.buildName=kaleido \
//	  -X kaleido/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run with the defaults below; Initialize reports which
// flag is missing so the CLI can warn without refusing to start.
package build

import (
	"errors"
	"fmt"
)

const description = "Audio-reactive kaleidoscope renderer"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the build information for `kaleido version`.
func (f ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Package-level variables populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        "kaleido",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize validates and copies build information from the ldflags
// variables. On error the development defaults stay in place.
func Initialize() error {
	if buildName == "" {
		return errors.New("BuildName is required")
	}
	if buildTime == "" {
		return errors.New("BuildTime is required")
	}
	if buildCommit == "" {
		return errors.New("BuildCommit is required")
	}
	if buildVersion == "" {
		return errors.New("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
