package helper

import (
	"context"
	"os/exec"
	"time"
)

// Detect probes an explicit override first, then PATH, for a working
// yt-dlp-compatible binary. Unlike the encoder detector there are no
// fixed install prefixes to probe: yt-dlp is near-universally installed
// via PATH-managed package managers (pip, a system package, or a
// standalone binary placed on PATH by the user).
func Detect(ctx context.Context, override string) (string, bool) {
	candidates := []string{}
	if override != "" {
		candidates = append(candidates, override)
	}
	if path, err := exec.LookPath("yt-dlp"); err == nil {
		candidates = append(candidates, path)
	}

	for _, c := range candidates {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := exec.CommandContext(probeCtx, c, "--version").Output()
		cancel()
		if err == nil {
			return c, true
		}
	}
	return "", false
}
