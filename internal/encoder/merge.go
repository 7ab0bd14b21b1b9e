package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// MergeFailedError carries the encoder's stderr tail on a non-zero exit,
// per the MergeFailed{stderrTail} error taxonomy entry.
type MergeFailedError struct {
	ExitCode   int
	StderrTail string
}

func (e *MergeFailedError) Error() string {
	return fmt.Sprintf("encoder exited with status %d: %s", e.ExitCode, e.StderrTail)
}

const stderrTailBytes = 4096

// Merge writes a concat-demuxer list file for segmentPaths (in order)
// and invokes the encoder to produce outputPath. The list file is
// removed regardless of outcome.
func Merge(ctx context.Context, binary string, segmentPaths []string, outputPath string) error {
	listPath := outputPath + ".concat.txt"
	if err := writeConcatList(listPath, segmentPaths); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	cmd := exec.CommandContext(ctx, binary,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := stderr.Bytes()
		if len(tail) > stderrTailBytes {
			tail = tail[len(tail)-stderrTailBytes:]
		}
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return &MergeFailedError{ExitCode: exitCode, StderrTail: string(tail)}
	}
	return nil
}

// MuxAV combines a separately-demuxed video and audio track into one
// output container without re-encoding, for DASH representations whose
// video and audio adaptation sets must be joined after each is merged.
func MuxAV(ctx context.Context, binary, videoPath, audioPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, binary,
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		"-y", outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := stderr.Bytes()
		if len(tail) > stderrTailBytes {
			tail = tail[len(tail)-stderrTailBytes:]
		}
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return &MergeFailedError{ExitCode: exitCode, StderrTail: string(tail)}
	}
	return nil
}

func writeConcatList(listPath string, segmentPaths []string) error {
	var buf bytes.Buffer
	for _, p := range segmentPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fmt.Fprintf(&buf, "file '%s'\n", abs)
	}
	return os.WriteFile(listPath, buf.Bytes(), 0o644)
}
