package media

import (
	"regexp"
	"strings"
)

// TextCodecs are the subtitle codecs ffmpeg can convert to srt without OCR.
var TextCodecs = []string{"srt", "ass", "webvtt", "subrip", "ttml", "vtt", "mov_text"}

// EnglishAliases are the stream language tags treated as the translation source.
var EnglishAliases = []string{"en", "eng", "english"}

// Extraction describes what Extract found inside a media container.
type Extraction struct {
	// SubtitlePath is the extracted English sidecar, empty when none was written.
	SubtitlePath string
	// HasTarget is set when the container already carried the target language.
	HasTarget  bool
	TargetPath string
	Reason     string
}

// Usable reports whether the extraction produced something to translate.
func (e Extraction) Usable() bool {
	return !e.HasTarget && e.SubtitlePath != ""
}

type stream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Tags      struct {
		Language string `json:"language"`
		Title    string `json:"title"`
	} `json:"tags"`
	Disposition struct {
		Default int `json:"default"`
		Forced  int `json:"forced"`
	} `json:"disposition"`
}

type probeResult struct {
	Streams []stream `json:"streams"`
}

func (s stream) language() string {
	return strings.ToLower(strings.TrimSpace(s.Tags.Language))
}

func (s stream) isText() bool {
	if s.CodecType != "subtitle" || s.Disposition.Forced != 0 {
		return false
	}
	return contains(TextCodecs, strings.ToLower(s.CodecName))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

var (
	bracketName = regexp.MustCompile(`^(.*) \[`)
	yearName    = regexp.MustCompile(`^.* \(\d{4}\)`)
	mediaExt    = regexp.MustCompile(`\.(mkv|mp4)$`)
)

// DisplayName shortens a media file name for log lines: release tags in
// brackets are cut, a "(YYYY)" year ends the title, otherwise the extension
// is dropped.
func DisplayName(fileName string) string {
	if m := bracketName.FindStringSubmatch(fileName); m != nil {
		return m[1]
	}
	if m := yearName.FindString(fileName); m != "" {
		return m
	}
	return mediaExt.ReplaceAllString(fileName, "")
}
