package subtitle

import (
	"fmt"
	"strings"

	"github.com/MimeLyc/subs-ai/pkg/file"
)

// Format pairs every entry header with its translated line. Entries are
// separated by a blank line.
func Format(entries []Entry, lines []string) (string, error) {
	if len(entries) != len(lines) {
		return "", fmt.Errorf("have %d translated lines for %d entries", len(lines), len(entries))
	}

	parts := make([]string, len(entries))
	for i, entry := range entries {
		parts[i] = entry.Header + lines[i]
	}
	return strings.Join(parts, "\n\n") + "\n", nil
}

// WriteFile formats and atomically writes a translated subtitle file.
func WriteFile(path string, entries []Entry, lines []string) error {
	content, err := Format(entries, lines)
	if err != nil {
		return err
	}
	if err := file.WriteAtomic(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	return nil
}

// Clean rewrites an extracted subtitle file with markup removed.
func Clean(src, dst string) error {
	f, err := ReadFile(src)
	if err != nil {
		return err
	}
	return WriteFile(dst, f.Entries, f.Contents())
}
