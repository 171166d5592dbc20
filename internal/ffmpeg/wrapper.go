package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Command represents an FFmpeg command to execute.
type Command struct {
	Binary string
	Args   []string
	Output string

	// Process control
	cmd     *exec.Cmd
	started time.Time
	mu      sync.RWMutex

	// Process monitoring
	monitor *ProcessMonitor

	// stderr capture; log path empty means memory-only
	stderrLogPath string
	stderr        tailBuffer
}

// tailBuffer keeps the most recent stderr lines for error reporting.
type tailBuffer struct {
	mu    sync.RWMutex
	lines []string
	max   int
}

func (b *tailBuffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && len(b.lines) >= b.max {
		copy(b.lines, b.lines[1:])
		b.lines = b.lines[:len(b.lines)-1]
	}
	b.lines = append(b.lines, line)
}

func (b *tailBuffer) all() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.lines...)
}

// tail joins the last n lines for folding into an error message.
func (b *tailBuffer) tail(n int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.lines) == 0 {
		return ""
	}
	start := max(len(b.lines)-n, 0)
	return strings.Join(b.lines[start:], " | ")
}

// inputSpec is one -i input with the arguments that precede it.
type inputSpec struct {
	args []string
	path string
}

// CommandBuilder builds FFmpeg commands with a fluent API.
type CommandBuilder struct {
	binary        string
	globalArgs    []string
	inputs        []inputSpec
	filterArgs    []string
	filterComplex string
	mapLabel      string
	outputArgs    []string
	output        string
	logLevel      string
	overwrite     bool
	stderrLogPath string
}

// NewCommandBuilder creates a new FFmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the FFmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the FFmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// NoStats suppresses periodic progress lines on stderr.
func (b *CommandBuilder) NoStats() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-nostats")
	return b
}

// Overwrite enables output file overwriting.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Input adds an input file decoded from the start.
func (b *CommandBuilder) Input(path string) *CommandBuilder {
	b.inputs = append(b.inputs, inputSpec{path: path})
	return b
}

// InputSeek adds an input file decoded from offset seconds in. The seek
// is an input option, so decode begins at the offset rather than
// trimming afterwards.
func (b *CommandBuilder) InputSeek(path string, offset float64) *CommandBuilder {
	b.inputs = append(b.inputs, inputSpec{
		args: []string{"-ss", formatSeconds(offset)},
		path: path,
	})
	return b
}

// AudioFilter adds a simple -af filter applied to the single input.
// Mutually exclusive with FilterComplex.
func (b *CommandBuilder) AudioFilter(filter string) *CommandBuilder {
	b.filterArgs = append(b.filterArgs, filter)
	return b
}

// FilterComplex sets the filter graph routing all inputs.
func (b *CommandBuilder) FilterComplex(graph string) *CommandBuilder {
	b.filterComplex = graph
	return b
}

// Map selects the labelled graph output to encode, e.g. "[out]".
func (b *CommandBuilder) Map(label string) *CommandBuilder {
	b.mapLabel = label
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// AudioBitrate sets the audio bitrate.
func (b *CommandBuilder) AudioBitrate(bitrate string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:a", bitrate)
	return b
}

// SampleRate sets the output sample rate.
func (b *CommandBuilder) SampleRate(hz int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ar", strconv.Itoa(hz))
	return b
}

// AudioChannels sets the number of audio channels.
func (b *CommandBuilder) AudioChannels(channels int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ac", strconv.Itoa(channels))
	return b
}

// Format sets the output container format.
func (b *CommandBuilder) Format(format string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-f", format)
	return b
}

// MP3Args adds the standard segment output arguments: libmp3lame at the
// given bitrate and sample rate, stereo.
func (b *CommandBuilder) MP3Args(bitrate string, sampleRate int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs,
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "2",
	)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// StderrLogPath sets a file path to write FFmpeg stderr output for debugging.
func (b *CommandBuilder) StderrLogPath(path string) *CommandBuilder {
	b.stderrLogPath = path
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build builds the command.
func (b *CommandBuilder) Build() *Command {
	var args []string

	// Global args (loglevel, banner, etc.)
	args = append(args, "-loglevel", b.logLevel)
	args = append(args, b.globalArgs...)

	// Overwrite
	if b.overwrite {
		args = append(args, "-y")
	}

	// Inputs, each preceded by its own options
	for _, in := range b.inputs {
		args = append(args, in.args...)
		args = append(args, "-i", in.path)
	}

	// Filters
	if b.filterComplex != "" {
		args = append(args, "-filter_complex", b.filterComplex)
		if b.mapLabel != "" {
			args = append(args, "-map", b.mapLabel)
		}
	} else if len(b.filterArgs) > 0 {
		args = append(args, "-af", strings.Join(b.filterArgs, ","))
	}

	// Output args
	args = append(args, b.outputArgs...)

	// Output
	args = append(args, b.output)

	return &Command{
		Binary:        b.binary,
		Args:          args,
		Output:        b.output,
		stderrLogPath: b.stderrLogPath,
		stderr:        tailBuffer{max: 100},
	}
}

// formatSeconds renders a seconds value for an ffmpeg argument.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// String returns the command as a string.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Run executes the command and waits for completion. Stderr is captured
// for debugging; on a non-zero exit the recent stderr lines are folded
// into the returned error.
func (c *Command) Run(ctx context.Context) error {
	c.mu.Lock()
	c.cmd = exec.CommandContext(ctx, c.Binary, c.Args...)
	c.started = time.Now()

	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("getting stderr pipe: %w", err)
	}
	logPath := c.stderrLogPath
	c.mu.Unlock()

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	// Start process monitoring after we have a PID
	c.mu.Lock()
	c.monitor = NewProcessMonitor(c.cmd.Process.Pid)
	c.monitor.Start()
	c.mu.Unlock()

	stderrDone := make(chan struct{})
	go c.captureStderr(stderr, logPath, stderrDone)

	waitErr := c.cmd.Wait()
	<-stderrDone
	c.stopMonitor()

	if waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tail := c.stderr.tail(5); tail != "" {
			return fmt.Errorf("ffmpeg failed: %w (stderr: %s)", waitErr, tail)
		}
		return fmt.Errorf("ffmpeg failed: %w", waitErr)
	}
	return nil
}

// Kill terminates the FFmpeg process.
func (c *Command) Kill() error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	return cmd.Process.Kill()
}

// Signal sends a signal to the FFmpeg process.
func (c *Command) Signal(sig os.Signal) error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	return cmd.Process.Signal(sig)
}

// IsRunning returns true if the command is running.
func (c *Command) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cmd == nil || c.cmd.Process == nil {
		return false
	}

	return c.cmd.ProcessState == nil
}

// Duration returns how long the command has been running.
func (c *Command) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.started.IsZero() {
		return 0
	}

	return time.Since(c.started)
}

// captureStderr drains ffmpeg stderr into the tail buffer and, when a
// log path is set, into an append-only session log. A failure to open
// the log file degrades to memory-only capture.
func (c *Command) captureStderr(stderr io.ReadCloser, logPath string, done chan struct{}) {
	defer close(done)

	var logFile *os.File
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open ffmpeg log file %s: %v\n", logPath, err)
		} else {
			logFile = f
			defer logFile.Close()
			fmt.Fprintf(logFile, "\n=== render started %s ===\n%s\n\n",
				time.Now().Format(time.RFC3339), c.String())
		}
	}

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		c.stderr.append(line)
		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}
	}

	if logFile != nil {
		fmt.Fprintf(logFile, "=== render ended %s ===\n", time.Now().Format(time.RFC3339))
	}
}

// GetStderrLines returns a copy of the captured stderr lines.
func (c *Command) GetStderrLines() []string {
	return c.stderr.all()
}

// stopMonitor stops the process monitor if running.
func (c *Command) stopMonitor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.Stop()
	}
}

// ProcessStats returns the current process statistics.
// Returns nil if the process is not running or monitoring is not active.
func (c *Command) ProcessStats() *ProcessStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.monitor == nil {
		return nil
	}

	stats := c.monitor.Stats()
	return &stats
}

// Monitor returns the process monitor for direct access.
// Returns nil if monitoring is not active.
func (c *Command) Monitor() *ProcessMonitor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monitor
}
