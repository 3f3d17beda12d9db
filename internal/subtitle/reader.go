package subtitle

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

var (
	cuePattern   = regexp.MustCompile(`(\d+\r?\n[^\r\n]* --> [^\r\n]*\r?\n)((?:[^\r\n]+\r?\n)+)`)
	markupTag    = regexp.MustCompile(`<[^>]*>`)
	overrideTag  = regexp.MustCompile(`\{[^}]+\}`)
	lineBreaks   = regexp.MustCompile(`\r?\n`)
	repeatSpaces = regexp.MustCompile(` {2,}`)
)

// Parse extracts cues from SRT bytes. ASS style markup converted by ffmpeg,
// HTML-like tags and {\override} blocks are removed from the content.
// Cues whose text is only markup are kept with empty content so headers survive.
func Parse(data []byte) []Entry {
	text := string(data)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	var entries []Entry
	for _, m := range cuePattern.FindAllStringSubmatch(text, -1) {
		entries = append(entries, Entry{
			Header:  m[1],
			Content: cleanContent(m[2]),
		})
	}
	return entries
}

func cleanContent(raw string) string {
	content := strings.TrimSpace(raw)
	content = markupTag.ReplaceAllString(content, "")
	content = overrideTag.ReplaceAllString(content, "")
	content = lineBreaks.ReplaceAllString(content, " ")
	content = repeatSpaces.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

// ReadFile reads and parses the SRT file at path.
func ReadFile(path string) (*File, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".srt") {
		return nil, fmt.Errorf("only SRT format subtitle files are supported: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}

	return &File{
		Path:    path,
		Entries: Parse(data),
	}, nil
}

// DetectLanguage returns the most common language among the entries.
func DetectLanguage(entries []Entry) language.Tag {
	if len(entries) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, entry := range entries {
		if entry.Content == "" {
			continue
		}
		lang := whatlanggo.DetectLang(entry.Content).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}

	return language.All.Make(topLang)
}
