package subtitle

import (
	"path/filepath"
	"strings"

	"github.com/MimeLyc/subs-ai/pkg/file"
)

// SourceSuffix marks the English reference sidecar of a media file.
const SourceSuffix = ".en.srt"

// SourcePath is where the English sidecar for mediaPath lives.
func SourcePath(mediaPath string) string {
	return file.ReplaceExt(mediaPath, SourceSuffix)
}

// TargetPath derives the translated file name from a source subtitle path by
// swapping the language suffix for alias.
func TargetPath(sourcePath, alias string) string {
	target := "." + alias + ".srt"
	if strings.HasSuffix(sourcePath, SourceSuffix) {
		return strings.TrimSuffix(sourcePath, SourceSuffix) + target
	}
	return file.ReplaceExt(sourcePath, target)
}

// HasSidecar reports whether a subtitle in any of the given languages already
// sits next to mediaPath.
func HasSidecar(mediaPath string, langs []string) (string, bool) {
	base := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
	matches, err := filepath.Glob(file.EscapeBrackets(base) + "*.srt")
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		for _, lang := range langs {
			if lang != "" && strings.HasSuffix(m, "."+lang+".srt") {
				return m, true
			}
		}
	}
	return "", false
}
