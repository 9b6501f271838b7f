package version

import (
	"os"
	"strings"
)

// Version is overridden at build time with -ldflags "-X ...version.Version=1.2.3"
// or read from a VERSION file next to the binary.
var Version = "dev"

// Load replaces Version with the contents of path when the file exists and
// Version was not set at build time.
func Load(path string) string {
	if Version != "dev" {
		return Version
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Version
	}
	if v := strings.TrimSpace(string(data)); v != "" {
		Version = v
	}
	return Version
}
