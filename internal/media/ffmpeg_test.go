package media

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const extractedSRT = "1\n00:00:01,000 --> 00:00:02,000\n<i>Hello</i> {\\an8}there\n\n2\n00:00:03,000 --> 00:00:04,000\nBye\n"

// installTools puts mock ffprobe and ffmpeg binaries first on PATH. The mock
// ffmpeg writes extractedSRT to its last argument and records its arguments.
func installTools(t *testing.T, probeOutput string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("mock tools use sh scripts")
	}
	dir := t.TempDir()

	probe := "#!/bin/sh\ncat <<'JSON'\n" + probeOutput + "\nJSON\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffprobe"), []byte(probe), 0o755))

	argsFile := filepath.Join(dir, "ffmpeg.args")
	srtFile := filepath.Join(dir, "extracted.srt")
	require.NoError(t, os.WriteFile(srtFile, []byte(extractedSRT), 0o644))
	ffmpeg := "#!/bin/sh\necho \"$@\" > '" + argsFile + "'\nfor last; do :; done\ncp '" + srtFile + "' \"$last\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte(ffmpeg), 0o755))

	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return argsFile
}

func TestExtractor_EnglishTrack(t *testing.T) {
	argsFile := installTools(t, `{"streams": [
		{"index": 2, "codec_type": "subtitle", "codec_name": "hdmv_pgs_subtitle", "tags": {"language": "eng"}},
		{"index": 3, "codec_type": "subtitle", "codec_name": "subrip", "tags": {"language": "eng"}, "disposition": {"forced": 1}},
		{"index": 4, "codec_type": "subtitle", "codec_name": "subrip", "tags": {"language": "ENG"}}
	]}`)
	media := filepath.Join(t.TempDir(), "Show (2020).mkv")

	result, err := NewExtractor([]string{"es", "spa"}).Extract(context.Background(), media)
	require.NoError(t, err)
	assert.True(t, result.Usable())
	assert.Equal(t, strings.TrimSuffix(media, ".mkv")+".en.srt", result.SubtitlePath)
	assert.FileExists(t, result.SubtitlePath)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-map 0:4")
	assert.Contains(t, string(args), "-c:s srt")
}

func TestExtractor_TargetTrackIsCleaned(t *testing.T) {
	installTools(t, `{"streams": [
		{"index": 2, "codec_type": "subtitle", "codec_name": "subrip", "tags": {"language": "eng"}},
		{"index": 5, "codec_type": "subtitle", "codec_name": "ass", "tags": {"language": "spa"}}
	]}`)
	dir := t.TempDir()
	media := filepath.Join(dir, "movie.mkv")

	result, err := NewExtractor([]string{"es", "spa"}).Extract(context.Background(), media)
	require.NoError(t, err)
	assert.True(t, result.HasTarget)
	assert.False(t, result.Usable())
	assert.Equal(t, filepath.Join(dir, "movie.es.srt"), result.TargetPath)

	content, err := os.ReadFile(result.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nHello there\n\n2\n00:00:03,000 --> 00:00:04,000\nBye\n", string(content))

	leftovers, err := filepath.Glob(filepath.Join(dir, ".subs-ai-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
	assert.NoFileExists(t, filepath.Join(dir, "movie.en.srt"))
}

func TestExtractor_NoUsableTrack(t *testing.T) {
	tests := []struct {
		name   string
		probe  string
		reason string
	}{
		{
			name:   "no subtitle streams",
			probe:  `{"streams": []}`,
			reason: "no subtitles found",
		},
		{
			name:   "only image subtitles",
			probe:  `{"streams": [{"index": 2, "codec_type": "subtitle", "codec_name": "hdmv_pgs_subtitle", "tags": {"language": "eng"}}]}`,
			reason: "no subtitles found",
		},
		{
			name:   "text track in another language",
			probe:  `{"streams": [{"index": 2, "codec_type": "subtitle", "codec_name": "srt", "tags": {"language": "jpn"}}]}`,
			reason: "no english text subtitles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			installTools(t, tt.probe)
			media := filepath.Join(t.TempDir(), "movie.mp4")

			result, err := NewExtractor([]string{"es"}).Extract(context.Background(), media)
			require.NoError(t, err)
			assert.False(t, result.Usable())
			assert.False(t, result.HasTarget)
			assert.Equal(t, tt.reason, result.Reason)
		})
	}
}

func TestExtractor_InvalidProbeOutput(t *testing.T) {
	installTools(t, `{"streams": [invalid json`)

	_, err := NewExtractor([]string{"es"}).Extract(context.Background(), "dummy.mkv")
	assert.Error(t, err)
}

func TestExtractor_MissingFFprobe(t *testing.T) {
	t.Setenv("PATH", "")

	_, err := NewExtractor([]string{"es"}).Extract(context.Background(), "test.mp4")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ffprobe")
}

func TestProbeArgs(t *testing.T) {
	expected := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams",
		"s",
		"/path/to/video.mp4",
	}
	assert.Equal(t, expected, probeArgs("/path/to/video.mp4"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Show S01E02", DisplayName("Show S01E02 [1080p x265].mkv"))
	assert.Equal(t, "Movie (1999)", DisplayName("Movie (1999) 2160p.mkv"))
	assert.Equal(t, "plain", DisplayName("plain.mp4"))
}

// TestRealFFProbe runs against the installed ffprobe when there is one.
func TestRealFFProbe(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test that requires actual ffprobe")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available, skipping real test")
	}

	_, err := NewExtractor(nil).Extract(context.Background(), filepath.Join(t.TempDir(), "missing-input.mkv"))
	assert.Error(t, err)
}
