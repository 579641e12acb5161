package main

import (
	_ "embed"
	"runtime/debug"
	"strings"

	"takeout-organizer/cmd"
)

//go:embed VERSION
var embeddedVersion string

// resolveVersion prefers -ldflags, then the VERSION file, then the module version
// recorded by `go install`.
func resolveVersion(current, embedded string) string {
	if current != "" && current != "dev" {
		return current
	}
	if v := strings.TrimSpace(embedded); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func init() {
	cmd.Version = resolveVersion(cmd.Version, embeddedVersion)
	cmd.ApplyVersion()
}
