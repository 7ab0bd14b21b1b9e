// Package encoder locates and drives the external concat-demuxer encoder
// (e.g. ffmpeg) used to mux downloaded segments into a playable
// container.
package encoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// candidatePrefixes are probed, in order, before falling back to PATH.
func candidatePrefixes() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{`C:\ffmpeg\bin`}
	case "darwin":
		return []string{"/usr/local/bin", "/opt/homebrew/bin"}
	default:
		return []string{"/usr/local/bin", "/usr/bin"}
	}
}

// Info describes a discovered encoder binary.
type Info struct {
	Binary    string
	Version   string
	Available bool
}

// Detect probes, in order: an explicit override, standard install
// prefixes, then every entry on PATH. The first candidate that answers
// ffmpeg's -version flag within 5 seconds with a success exit status wins.
func Detect(ctx context.Context, override string) (*Info, error) {
	candidates := []string{}
	if override != "" {
		candidates = append(candidates, override)
	}
	for _, prefix := range candidatePrefixes() {
		candidates = append(candidates, prefix+"/ffmpeg")
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		candidates = append(candidates, path)
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir != "" {
			candidates = append(candidates, filepath.Join(dir, "ffmpeg"))
		}
	}

	for _, c := range candidates {
		if version, ok := probeVersion(ctx, c); ok {
			return &Info{Binary: c, Version: version, Available: true}, nil
		}
	}
	return &Info{Available: false}, fmt.Errorf("ffmpeg not found: probed %d candidates", len(candidates))
}

func probeVersion(ctx context.Context, binary string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", false
	}
	return parseVersion(string(out)), true
}

var versionPattern = regexp.MustCompile(`version\s+([^\s,]+)`)

func parseVersion(output string) string {
	lines := strings.SplitN(strings.TrimSpace(output), "\n", 2)
	if len(lines) == 0 {
		return ""
	}
	if m := versionPattern.FindStringSubmatch(lines[0]); len(m) > 1 {
		return m[1]
	}
	return strings.TrimSpace(lines[0])
}
