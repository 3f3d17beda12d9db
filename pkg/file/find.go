package file

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// MediaExts are the containers the pipeline extracts subtitles from.
var MediaExts = []string{".mkv", ".mp4"}

// FindMedia resolves a glob pattern into a sorted list of media files.
// A pattern ending with a path separator walks the directory recursively.
// Square brackets are matched literally since release names often carry them.
func FindMedia(pattern string) ([]string, error) {
	var candidates []string

	if strings.HasSuffix(pattern, "/") {
		err := filepath.WalkDir(filepath.Clean(pattern), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				candidates = append(candidates, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		matches, err := filepath.Glob(EscapeBrackets(pattern))
		if err != nil {
			return nil, err
		}
		candidates = matches
	}

	ret := make([]string, 0, len(candidates))
	for _, path := range candidates {
		if IsMedia(path) {
			ret = append(ret, path)
		}
	}
	slices.Sort(ret)
	return ret, nil
}

// IsMedia reports whether path has a supported media extension.
func IsMedia(path string) bool {
	return slices.Contains(MediaExts, strings.ToLower(filepath.Ext(path)))
}

// EscapeBrackets makes `[` and `]` literal for filepath.Glob.
func EscapeBrackets(pattern string) string {
	r := strings.NewReplacer("[", `\[`, "]", `\]`)
	return r.Replace(pattern)
}
