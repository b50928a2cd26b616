// SPDX-License-Identifier: MIT
package main

import (
	"os"

	"biosignal/cmd"
	applog "biosignal/internal/log"
	"biosignal/pkg/build"
)

func main() {
	// Development builds run without ldflags and keep the defaults.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build info: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
