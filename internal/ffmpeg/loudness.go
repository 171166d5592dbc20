package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// loudnormReportRe matches the JSON block the loudnorm filter prints on
// stderr after its analysis pass.
var loudnormReportRe = regexp.MustCompile(`\{[\s\S]*\}`)

type loudnormReport struct {
	InputI string `json:"input_i"`
}

// MeasureLoudness runs a loudnorm analysis pass over the file and
// returns its integrated loudness in LUFS. Silent or unreadable inputs
// return an error; callers fall back to the target loudness.
func MeasureLoudness(ctx context.Context, ffmpegPath, path string) (float64, error) {
	// The report is emitted at info level, so the usual error loglevel
	// would swallow it.
	cmd := NewCommandBuilder(ffmpegPath).
		LogLevel("info").
		HideBanner().
		NoStats().
		Input(path).
		AudioFilter("loudnorm=print_format=json").
		Format("null").
		Output("-").
		Build()

	if err := cmd.Run(ctx); err != nil {
		return 0, fmt.Errorf("loudnorm analysis of %s: %w", path, err)
	}

	return parseLoudnessReport(strings.Join(cmd.GetStderrLines(), "\n"))
}

// parseLoudnessReport extracts input_i from loudnorm stderr output.
func parseLoudnessReport(stderr string) (float64, error) {
	block := loudnormReportRe.FindString(stderr)
	if block == "" {
		return 0, fmt.Errorf("no loudnorm report in ffmpeg output")
	}

	var report loudnormReport
	if err := json.Unmarshal([]byte(block), &report); err != nil {
		return 0, fmt.Errorf("parsing loudnorm report: %w", err)
	}

	lufs, err := strconv.ParseFloat(report.InputI, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing input_i %q: %w", report.InputI, err)
	}
	if math.IsInf(lufs, 0) || math.IsNaN(lufs) {
		// loudnorm reports -inf for digital silence
		return 0, fmt.Errorf("no measurable loudness (input_i=%s)", report.InputI)
	}
	return lufs, nil
}
