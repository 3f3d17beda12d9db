package persistence

import (
	"context"
	"fmt"
)

// Doc names one persisted state document.
type Doc string

const (
	DocJobs         Doc = "jobs"
	DocTranslations Doc = "translations"
	DocErrors       Doc = "errors"
)

// Docs lists every document a backend stores.
var Docs = []Doc{DocJobs, DocTranslations, DocErrors}

// Backend loads and saves whole state documents. Save replaces the previous
// snapshot atomically.
type Backend interface {
	// Load decodes doc into v. It reports false when nothing was saved yet.
	Load(ctx context.Context, doc Doc, v any) (bool, error)
	Save(ctx context.Context, doc Doc, v any) error
	Close() error
}

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the backend named kind rooted at dir.
func Open(kind, dir string) (Backend, error) {
	switch kind {
	case "", BackendJSON:
		return NewJSONFiles(dir)
	case BackendSQLite:
		return NewSQLiteStore(SQLitePath(dir))
	default:
		return nil, fmt.Errorf("unknown state backend %q", kind)
	}
}
