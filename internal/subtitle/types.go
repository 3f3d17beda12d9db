package subtitle

// Entry is one subtitle cue.
type Entry struct {
	Header  string // index and timing lines, kept verbatim including the trailing newline
	Content string // plain text with markup removed and newlines folded
}

// File is a parsed subtitle file.
type File struct {
	Path    string
	Entries []Entry
}

// Contents returns the entry texts in order.
func (f *File) Contents() []string {
	ret := make([]string, len(f.Entries))
	for i, e := range f.Entries {
		ret[i] = e.Content
	}
	return ret
}
