package ffmpeg

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not installed.
func skipIfNoFFmpeg(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	return path
}

// skipIfNoFFprobe skips the test if ffprobe is not installed.
func skipIfNoFFprobe(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}
	return path
}

// makeTestTone renders a sine tone MP3 for probing, skipping the test
// when the local ffmpeg cannot produce one.
func makeTestTone(t *testing.T, ffmpegPath string, seconds int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.mp3")
	cmd := exec.Command(ffmpegPath,
		"-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration="+formatSeconds(float64(seconds)),
		"-c:a", "libmp3lame", "-b:a", "192k",
		path)
	if err := cmd.Run(); err != nil {
		t.Skipf("could not create test tone: %v", err)
	}
	return path
}

func TestBinaryDetector_Detect(t *testing.T) {
	skipIfNoFFmpeg(t)
	skipIfNoFFprobe(t)

	ctx := context.Background()
	detector := NewBinaryDetector()

	info, err := detector.Detect(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.NotEmpty(t, info.FFmpegPath)
	assert.NotEmpty(t, info.FFprobePath)
	assert.NotEmpty(t, info.Version)
	assert.Greater(t, info.MajorVersion, 0)
	assert.True(t, info.HasFilter("acrossfade"))
}

func TestBinaryDetector_Caching(t *testing.T) {
	skipIfNoFFmpeg(t)
	skipIfNoFFprobe(t)

	ctx := context.Background()
	detector := NewBinaryDetector().WithCacheTTL(1 * time.Hour)

	info1, err := detector.Detect(ctx)
	require.NoError(t, err)

	// Second detection should return cached result
	info2, err := detector.Detect(ctx)
	require.NoError(t, err)

	assert.Equal(t, info1.FFmpegPath, info2.FFmpegPath)
	assert.Equal(t, info1.Version, info2.Version)
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantFull  string
		wantMajor int
		wantMinor int
	}{
		{
			name:      "release build",
			output:    "ffmpeg version 6.0 Copyright (c) 2000-2023 the FFmpeg developers\nbuilt with gcc 12\nconfiguration: --enable-libmp3lame --enable-gpl\n",
			wantFull:  "6.0",
			wantMajor: 6,
			wantMinor: 0,
		},
		{
			name:      "git snapshot",
			output:    "ffmpeg version n7.1-3-g1234abcd Copyright (c) 2000-2024 the FFmpeg developers\n",
			wantFull:  "n7.1-3-g1234abcd",
			wantMajor: 7,
			wantMinor: 1,
		},
		{
			name:      "patch release",
			output:    "ffmpeg version 6.1.2 Copyright (c) 2000-2024 the FFmpeg developers\n",
			wantFull:  "6.1.2",
			wantMajor: 6,
			wantMinor: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var info BinaryInfo
			require.NoError(t, parseVersion([]byte(tt.output), &info))
			assert.Equal(t, tt.wantFull, info.Version)
			assert.Equal(t, tt.wantMajor, info.MajorVersion)
			assert.Equal(t, tt.wantMinor, info.MinorVersion)
		})
	}
}

func TestParseVersion_Unparseable(t *testing.T) {
	var info BinaryInfo
	assert.Error(t, parseVersion([]byte("not ffmpeg output\n"), &info))
}

func TestParseEncoders(t *testing.T) {
	output := `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC
 A....D aac                  AAC (Advanced Audio Coding)
 A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3)
 A....D libopus              libopus Opus
`

	encoders := parseEncoders([]byte(output))
	assert.Contains(t, encoders, "libmp3lame")
	assert.Contains(t, encoders, "aac")
	assert.Contains(t, encoders, "libx264")
	assert.NotContains(t, encoders, "Encoders:")
}

func TestParseFilters(t *testing.T) {
	output := `Filters:
  T.. = Timeline support
  .S. = Slice threading
  ..C = Command support
  A = Audio input/output
  V = Video input/output
 ..C acrossfade       AA->A      Cross fade two input audio streams.
 T.C acompressor      A->A       Audio compressor.
 ... adelay           A->A       Delay one or more audio channels.
 T.C volume           A->A       Change input volume.
 ... scale            V->V       Scale the input video size.
`

	filters := parseFilters([]byte(output))
	assert.Contains(t, filters, "acrossfade")
	assert.Contains(t, filters, "adelay")
	assert.Contains(t, filters, "volume")
	assert.Contains(t, filters, "scale")
	assert.NotContains(t, filters, "Timeline")
}

func TestBinaryInfo_HasEncoder(t *testing.T) {
	info := &BinaryInfo{Encoders: []string{"libmp3lame", "aac"}}

	assert.True(t, info.HasEncoder("libmp3lame"))
	assert.False(t, info.HasEncoder("libopus"))
}

func TestBinaryInfo_HasFilter(t *testing.T) {
	info := &BinaryInfo{Filters: []string{"acrossfade", "adelay", "amix"}}

	assert.True(t, info.HasFilter("acrossfade"))
	assert.False(t, info.HasFilter("drawtext"))
}

func TestBinaryInfo_SupportsMinVersion(t *testing.T) {
	info := &BinaryInfo{MajorVersion: 6, MinorVersion: 1}

	assert.True(t, info.SupportsMinVersion(5, 0))
	assert.True(t, info.SupportsMinVersion(6, 0))
	assert.True(t, info.SupportsMinVersion(6, 1))
	assert.False(t, info.SupportsMinVersion(6, 2))
	assert.False(t, info.SupportsMinVersion(7, 0))
}

func TestCommandBuilder_RenderArgs(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		HideBanner().
		NoStats().
		Overwrite().
		InputSeek("/music/a.mp3", 168).
		Input("/music/b.mp3").
		Input("/tmp/voice.mp3").
		FilterComplex("[0:a]anull[out]").
		Map("[out]").
		MP3Args("320k", 44100).
		Output("/segments/mix_1a2b3c4d.mp3").
		Build()

	expected := []string{
		"-loglevel", "error",
		"-hide_banner",
		"-nostats",
		"-y",
		"-ss", "168", "-i", "/music/a.mp3",
		"-i", "/music/b.mp3",
		"-i", "/tmp/voice.mp3",
		"-filter_complex", "[0:a]anull[out]",
		"-map", "[out]",
		"-c:a", "libmp3lame",
		"-b:a", "320k",
		"-ar", "44100",
		"-ac", "2",
		"/segments/mix_1a2b3c4d.mp3",
	}
	assert.Equal(t, expected, cmd.Args)
	assert.Equal(t, "/usr/bin/ffmpeg", cmd.Binary)
	assert.Equal(t, "/segments/mix_1a2b3c4d.mp3", cmd.Output)
}

func TestCommandBuilder_LoudnessArgs(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		LogLevel("info").
		HideBanner().
		NoStats().
		Input("/music/a.mp3").
		AudioFilter("loudnorm=print_format=json").
		Format("null").
		Output("-").
		Build()

	expected := []string{
		"-loglevel", "info",
		"-hide_banner",
		"-nostats",
		"-i", "/music/a.mp3",
		"-af", "loudnorm=print_format=json",
		"-f", "null",
		"-",
	}
	assert.Equal(t, expected, cmd.Args)
}

func TestCommandBuilder_JoinsAudioFilters(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("in.mp3").
		AudioFilter("atrim=duration=30").
		AudioFilter("volume=-2dB").
		Output("out.mp3").
		Build()

	assert.Contains(t, cmd.Args, "-af")
	assert.Contains(t, cmd.Args, "atrim=duration=30,volume=-2dB")
}

func TestCommand_String(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("in.mp3").
		Output("out.mp3").
		Build()

	s := cmd.String()
	assert.Contains(t, s, "ffmpeg")
	assert.Contains(t, s, "-i in.mp3")
	assert.Contains(t, s, "out.mp3")
}

func TestCommand_IsRunning(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").Input("in.mp3").Output("out.mp3").Build()

	assert.False(t, cmd.IsRunning())
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{168, "168"},
		{42.5, "42.5"},
		{0.75, "0.75"},
		{11.625, "11.625"},
		{0, "0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSeconds(tt.in))
	}
}

func TestParseLoudnessReport(t *testing.T) {
	stderr := `[mp3 @ 0x557b4e2c4f00] Estimating duration from bitrate, this may be inaccurate
[Parsed_loudnorm_0 @ 0x557b4e2d8880]
{
	"input_i" : "-9.80",
	"input_tp" : "-0.52",
	"input_lra" : "4.10",
	"input_thresh" : "-20.05",
	"output_i" : "-14.02",
	"output_tp" : "-1.50",
	"output_lra" : "3.90",
	"output_thresh" : "-24.24",
	"normalization_type" : "dynamic",
	"target_offset" : "0.02"
}`

	lufs, err := parseLoudnessReport(stderr)
	require.NoError(t, err)
	assert.InDelta(t, -9.8, lufs, 0.001)
}

func TestParseLoudnessReport_NoReport(t *testing.T) {
	_, err := parseLoudnessReport("size=N/A time=00:03:30.00 bitrate=N/A speed= 441x")
	assert.Error(t, err)
}

func TestParseLoudnessReport_SilentInput(t *testing.T) {
	stderr := `[Parsed_loudnorm_0 @ 0x55]
{
	"input_i" : "-inf",
	"input_tp" : "-inf"
}`

	_, err := parseLoudnessReport(stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no measurable loudness")
}

func TestProbeResult_DurationSeconds(t *testing.T) {
	raw := `{
		"format": {
			"filename": "track.mp3",
			"format_name": "mp3",
			"duration": "210.123456",
			"bit_rate": "320000"
		},
		"streams": [
			{"index": 0, "codec_name": "mp3", "codec_type": "audio", "sample_rate": "44100", "channels": 2, "duration": "210.1"}
		]
	}`

	var result ProbeResult
	require.NoError(t, json.Unmarshal([]byte(raw), &result))

	d, ok := result.DurationSeconds()
	require.True(t, ok)
	assert.InDelta(t, 210.123456, d, 0.0001)
}

func TestProbeResult_DurationSeconds_StreamFallback(t *testing.T) {
	result := ProbeResult{
		Streams: []ProbeStream{
			{CodecType: "audio", Duration: "185.4"},
		},
	}

	d, ok := result.DurationSeconds()
	require.True(t, ok)
	assert.InDelta(t, 185.4, d, 0.0001)
}

func TestProbeResult_DurationSeconds_Missing(t *testing.T) {
	result := ProbeResult{}

	_, ok := result.DurationSeconds()
	assert.False(t, ok)
}

func TestProbeResult_AudioStream(t *testing.T) {
	result := ProbeResult{
		Streams: []ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "mjpeg"}, // embedded cover art
			{Index: 1, CodecType: "audio", CodecName: "mp3", SampleRate: "44100", Channels: 2},
		},
	}

	s := result.AudioStream()
	require.NotNil(t, s)
	assert.Equal(t, "mp3", s.CodecName)
	assert.Equal(t, 44100, result.SampleRate())
}

func TestProbeResult_AudioStream_None(t *testing.T) {
	result := ProbeResult{}

	assert.Nil(t, result.AudioStream())
	assert.Equal(t, 0, result.SampleRate())
}

func TestExecutor_BuildRenderCommand(t *testing.T) {
	e := NewExecutor("/usr/bin/ffmpeg", "/usr/bin/ffprobe").WithSampleRate(48000)

	cmd, err := e.buildRenderCommand("[0:a][1:a]acrossfade=d=10:c1=tri:c2=tri[out]",
		[]Input{{Path: "a.mp3", Seek: 168}, {Path: "b.mp3"}}, "mix.mp3")
	require.NoError(t, err)

	assert.Contains(t, cmd.Args, "-filter_complex")
	assert.Contains(t, cmd.Args, "-map")
	assert.Contains(t, cmd.Args, "[out]")
	assert.Contains(t, cmd.Args, "-ss")
	assert.Contains(t, cmd.Args, "48000")
	assert.Equal(t, "mix.mp3", cmd.Output)
}

func TestExecutor_BuildRenderCommand_Validation(t *testing.T) {
	e := NewExecutor("ffmpeg", "ffprobe")

	_, err := e.buildRenderCommand("", []Input{{Path: "a.mp3"}}, "out.mp3")
	assert.Error(t, err)

	_, err = e.buildRenderCommand("[0:a]anull[out]", nil, "out.mp3")
	assert.Error(t, err)
}

func TestIntegration_ProbeDuration(t *testing.T) {
	ffmpegPath := skipIfNoFFmpeg(t)
	ffprobePath := skipIfNoFFprobe(t)

	tone := makeTestTone(t, ffmpegPath, 2)

	e := NewExecutor(ffmpegPath, ffprobePath)
	d, err := e.ProbeDuration(context.Background(), tone)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 0.2)
}

func TestIntegration_ProbeLoudness(t *testing.T) {
	ffmpegPath := skipIfNoFFmpeg(t)
	ffprobePath := skipIfNoFFprobe(t)

	tone := makeTestTone(t, ffmpegPath, 2)

	e := NewExecutor(ffmpegPath, ffprobePath)
	lufs, err := e.ProbeLoudness(context.Background(), tone)
	require.NoError(t, err)
	assert.Less(t, lufs, 0.0)
	assert.Greater(t, lufs, -70.0)
}

func TestIntegration_RenderCrossfade(t *testing.T) {
	ffmpegPath := skipIfNoFFmpeg(t)
	ffprobePath := skipIfNoFFprobe(t)

	toneA := makeTestTone(t, ffmpegPath, 2)
	toneB := makeTestTone(t, ffmpegPath, 2)
	output := filepath.Join(t.TempDir(), "mix.mp3")

	e := NewExecutor(ffmpegPath, ffprobePath)
	err := e.Run(context.Background(),
		"[0:a][1:a]acrossfade=d=1:c1=tri:c2=tri[out]",
		[]Input{{Path: toneA}, {Path: toneB}},
		output)
	require.NoError(t, err)

	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// 2s + 2s with a 1s overlap
	d, err := e.ProbeDuration(context.Background(), output)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d, 0.3)
}

func TestIntegration_RunFailsOnBadInput(t *testing.T) {
	ffmpegPath := skipIfNoFFmpeg(t)
	ffprobePath := skipIfNoFFprobe(t)

	e := NewExecutor(ffmpegPath, ffprobePath)
	err := e.Run(context.Background(),
		"[0:a]anull[out]",
		[]Input{{Path: "/nonexistent/missing.mp3"}},
		filepath.Join(t.TempDir(), "out.mp3"))
	assert.Error(t, err)
}
