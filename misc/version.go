// Package misc keeps small program-identity helpers.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "flowstach"

// GetAppName returns program name to be used in logs and reports.
func GetAppName() string {
	return appName
}

var readBuildInfo = sync.OnceValues(func() (string, string) {
	version, hash := "unknown", "unknown"
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return version, hash
	}
	if len(bi.Main.Version) > 0 {
		version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			hash = s.Value[:12]
		}
	}
	return version, hash
})

// GetVersion returns module version recorded at build time.
func GetVersion() string {
	v, _ := readBuildInfo()
	return v
}

// GetGitHash returns abbreviated VCS revision recorded at build time.
func GetGitHash() string {
	_, h := readBuildInfo()
	return h
}
