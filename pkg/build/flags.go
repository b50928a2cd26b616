// SPDX-License-Identifier: MIT
//
// Package build carries the application name, build timestamp, Git commit,
// semantic version and build UUID embedded at compile time with linker flags:
//
//	go build -ldflags "-X biosignal/pkg/build.buildName=biosignal \
//	  -X biosignal/pkg/build.buildVersion=0.1.0 ..."
//
// Development builds without flags report "unknown" for every field.
package build

import (
	"fmt"

	"github.com/google/uuid"
)

// Info is the build metadata shown by the version command and logged at
// startup.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
	UUID        string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, build %s)", i.Name, i.Version, i.Commit, i.Time, i.UUID)
}

const (
	defaultName        = "biosignal"
	defaultDescription = "Biosignal acquisition buffer and spectrum analyser"
	unknown            = "unknown"
)

// Populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildUUID    string
)

var info = devInfo()

func devInfo() Info {
	return Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
		UUID:        unknown,
	}
}

// Initialize validates and copies the ldflags values. It returns an error
// if any flag is missing or the build UUID does not parse, leaving the
// development defaults in place.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}
	if buildUUID == "" {
		return fmt.Errorf("BuildUUID is required")
	}
	id, err := uuid.Parse(buildUUID)
	if err != nil {
		return fmt.Errorf("BuildUUID is invalid: %w", err)
	}

	info = Info{
		Name:        buildName,
		Description: defaultDescription,
		Time:        buildTime,
		Commit:      buildCommit,
		Version:     buildVersion,
		UUID:        id.String(),
	}
	return nil
}

// Get returns the current build information.
func Get() Info {
	return info
}
