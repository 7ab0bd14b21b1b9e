package helper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/siliconyouth/aigrabber-core/internal/model"
)

// progressLinePattern matches:
//
//	[download]  42.0% of ~10.00MiB at 512.00KiB/s ETA 00:05
//	[download] 100% of 10.00MiB at 1.20MiB/s ETA 00:00:00
var progressLinePattern = regexp.MustCompile(
	`\[download\]\s+([\d.]+)%\s+of\s+~?([\d.]+)(B|KiB|MiB|GiB|KB|MB|GB)\s+at\s+([\d.]+)(B|KiB|MiB|GiB|KB|MB|GB)/s\s+ETA\s+(\d+:\d+(?::\d+)?)`,
)

// ParseProgressLine translates one yt-dlp-style textual progress line
// into a DownloadProgress. ok is false when line doesn't match.
func ParseProgressLine(line string) (model.DownloadProgress, bool) {
	m := progressLinePattern.FindStringSubmatch(line)
	if m == nil {
		return model.DownloadProgress{}, false
	}

	pct, _ := parseNumber(m[1])
	size := unitBytes(m[2], m[3])
	speed := unitBytes(m[4], m[5])
	eta := parseETASeconds(m[6])

	p := model.DownloadProgress{
		TotalBytes: int64(size),
		SpeedBps:   speed,
		ETASeconds: eta,
		Percentage: pct,
	}
	p.DownloadedBytes = int64(pct / 100 * size)
	p.Clamp()
	return p, true
}

// unitBytes converts a numeric string plus a unit suffix to bytes.
// KiB/MiB/GiB use base 1024; KB/MB/GB use base 1000; B is identity.
func unitBytes(numStr, unit string) float64 {
	n, ok := parseNumber(numStr)
	if !ok {
		return 0
	}
	switch unit {
	case "KiB":
		return n * 1024
	case "MiB":
		return n * 1024 * 1024
	case "GiB":
		return n * 1024 * 1024 * 1024
	case "KB":
		return n * 1000
	case "MB":
		return n * 1000 * 1000
	case "GB":
		return n * 1000 * 1000 * 1000
	default: // "B"
		return n
	}
}

func parseETASeconds(s string) float64 {
	parts := strings.Split(s, ":")
	var total float64
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		total = total*60 + float64(v)
	}
	return total
}

var (
	mergerPattern      = regexp.MustCompile(`\[Merger\] Merging formats into "(.+)"`)
	destinationPattern = regexp.MustCompile(`\[download\] Destination: (.+)`)
	alreadyDonePattern = regexp.MustCompile(`\[download\] (.+) has already been downloaded`)
)

// ParseOutputPath extracts the final output path from a helper stdout
// line, trying patterns in priority order.
func ParseOutputPath(line string) (string, bool) {
	if m := mergerPattern.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := destinationPattern.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := alreadyDonePattern.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}
