package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
)

// Input is one render input. Seek > 0 starts decode that many seconds
// in, as an input option.
type Input struct {
	Path string
	Seek float64
}

// Executor runs filter-graph renders and audio probes against detected
// ffmpeg/ffprobe binaries. It is the one place the rest of the codebase
// shells out to them from.
type Executor struct {
	ffmpegPath string
	prober     *Prober
	sampleRate int
	bitrate    string
	logDir     string
}

// NewExecutor creates an executor over the given binaries with the
// standard segment output settings (320 kbps MP3 at 44.1 kHz).
func NewExecutor(ffmpegPath, ffprobePath string) *Executor {
	return &Executor{
		ffmpegPath: ffmpegPath,
		prober:     NewProber(ffprobePath),
		sampleRate: 44100,
		bitrate:    "320k",
	}
}

// WithSampleRate overrides the output sample rate.
func (e *Executor) WithSampleRate(hz int) *Executor {
	e.sampleRate = hz
	return e
}

// WithBitrate overrides the output bitrate.
func (e *Executor) WithBitrate(bitrate string) *Executor {
	e.bitrate = bitrate
	return e
}

// WithLogDir writes per-render ffmpeg stderr to render.log in dir.
func (e *Executor) WithLogDir(dir string) *Executor {
	e.logDir = dir
	return e
}

// ProbeDuration returns the duration of an audio file in seconds.
func (e *Executor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return e.prober.ProbeDuration(ctx, path)
}

// ProbeLoudness returns the integrated loudness of an audio file in LUFS.
func (e *Executor) ProbeLoudness(ctx context.Context, path string) (float64, error) {
	return MeasureLoudness(ctx, e.ffmpegPath, path)
}

// Run renders a filter graph over the inputs into an MP3 at outputPath.
// The graph must route its final mix to the [out] label.
func (e *Executor) Run(ctx context.Context, graph string, inputs []Input, outputPath string) error {
	cmd, err := e.buildRenderCommand(graph, inputs, outputPath)
	if err != nil {
		return err
	}
	return cmd.Run(ctx)
}

// buildRenderCommand assembles the ffmpeg invocation for a render.
func (e *Executor) buildRenderCommand(graph string, inputs []Input, outputPath string) (*Command, error) {
	if graph == "" {
		return nil, fmt.Errorf("render needs a filter graph")
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("render needs at least one input")
	}

	b := NewCommandBuilder(e.ffmpegPath).
		HideBanner().
		NoStats().
		Overwrite()

	for _, in := range inputs {
		if in.Seek > 0 {
			b.InputSeek(in.Path, in.Seek)
		} else {
			b.Input(in.Path)
		}
	}

	b.FilterComplex(graph).
		Map("[out]").
		MP3Args(e.bitrate, e.sampleRate)

	if e.logDir != "" {
		b.StderrLogPath(filepath.Join(e.logDir, "render.log"))
	}

	return b.Output(outputPath).Build(), nil
}
