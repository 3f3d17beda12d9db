package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/MimeLyc/subs-ai/internal/subtitle"
	"github.com/MimeLyc/subs-ai/pkg/log"
)

// Extractor pulls text subtitle tracks out of media containers with the
// ffprobe and ffmpeg binaries.
type Extractor struct {
	// TargetAliases are the language tags of the translation target; the
	// first one names the written sidecar.
	TargetAliases []string
	FFmpeg        string
	FFprobe       string
}

func NewExtractor(targetAliases []string) *Extractor {
	return &Extractor{
		TargetAliases: targetAliases,
		FFmpeg:        "ffmpeg",
		FFprobe:       "ffprobe",
	}
}

// Extract inspects mediaPath and writes at most one sidecar next to it. A
// track in the target language is cleaned into the target sidecar and reported
// with HasTarget; otherwise the first English text track becomes the source
// sidecar.
func (e *Extractor) Extract(ctx context.Context, mediaPath string) (Extraction, error) {
	streams, err := e.probe(ctx, mediaPath)
	if err != nil {
		return Extraction{}, err
	}
	name := DisplayName(filepath.Base(mediaPath))

	var text []stream
	for _, s := range streams {
		if s.isText() {
			text = append(text, s)
		}
	}
	if len(text) == 0 {
		return Extraction{Reason: "no subtitles found"}, nil
	}

	sourcePath := subtitle.SourcePath(mediaPath)
	if target, ok := e.findTarget(text); ok && len(e.TargetAliases) > 0 {
		log.Info("Extracting embedded subtitles for target language: %s", name)
		targetPath := subtitle.TargetPath(sourcePath, e.TargetAliases[0])
		if err := e.extractClean(ctx, mediaPath, target.Index, targetPath); err != nil {
			return Extraction{}, err
		}
		return Extraction{HasTarget: true, TargetPath: targetPath, Reason: "embedded target language track"}, nil
	}

	english, ok := findLanguage(text, EnglishAliases)
	if !ok {
		if _, found := findLanguage(streams, EnglishAliases); found {
			log.Warn("Found subs but in incorrect format or forced: %s", name)
		}
		return Extraction{Reason: "no english text subtitles"}, nil
	}

	log.Info("Extracting embedded subs for translation: %s", name)
	if err := e.extract(ctx, mediaPath, english.Index, sourcePath); err != nil {
		return Extraction{}, err
	}
	return Extraction{SubtitlePath: sourcePath}, nil
}

func (e *Extractor) findTarget(streams []stream) (stream, bool) {
	return findLanguage(streams, e.TargetAliases)
}

func findLanguage(streams []stream, langs []string) (stream, bool) {
	for _, s := range streams {
		if s.CodecType == "subtitle" && s.language() != "" && contains(langs, s.language()) {
			return s, true
		}
	}
	return stream{}, false
}

func (e *Extractor) probe(ctx context.Context, mediaPath string) ([]stream, error) {
	cmdPath, err := exec.LookPath(e.FFprobe)
	if err != nil {
		return nil, err
	}
	output, err := exec.CommandContext(ctx, cmdPath, probeArgs(mediaPath)...).Output()
	if err != nil {
		log.Error("Failed to run ffprobe: %v", err)
		return nil, fmt.Errorf("ffprobe %s: %w", mediaPath, err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		log.Error("Failed to parse ffprobe output: %v", err)
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return result.Streams, nil
}

func (e *Extractor) extract(ctx context.Context, mediaPath string, index int, output string) error {
	cmdPath, err := exec.LookPath(e.FFmpeg)
	if err != nil {
		return err
	}
	out, err := exec.CommandContext(ctx, cmdPath, extractArgs(mediaPath, index, output)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract stream %d of %s: %w: %s", index, mediaPath, err, out)
	}
	return nil
}

// extractClean extracts into a temporary file and rewrites it with plain text
// cues at output.
func (e *Extractor) extractClean(ctx context.Context, mediaPath string, index int, output string) error {
	tmp, err := os.CreateTemp(filepath.Dir(output), ".subs-ai-*.srt")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := e.extract(ctx, mediaPath, index, tmpPath); err != nil {
		return err
	}
	return subtitle.Clean(tmpPath, output)
}

func probeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams",
		"s",
		path,
	}
}

func extractArgs(mediaPath string, index int, output string) []string {
	return []string{
		"-y",
		"-v", "error",
		"-i", mediaPath,
		"-vn", "-an",
		"-map", fmt.Sprintf("0:%d", index),
		"-c:s", "srt",
		"-f", "srt",
		output,
	}
}
