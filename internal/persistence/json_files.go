package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MimeLyc/subs-ai/pkg/file"
)

var fileNames = map[Doc]string{
	DocJobs:         "cache.json",
	DocTranslations: "translations.json",
	DocErrors:       "errors.json",
}

// JSONFiles keeps each document in its own JSON file under a directory.
type JSONFiles struct {
	dir string
}

func NewJSONFiles(dir string) (*JSONFiles, error) {
	if dir == "" {
		return nil, errors.New("state dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &JSONFiles{dir: dir}, nil
}

func (j *JSONFiles) path(doc Doc) (string, error) {
	name, ok := fileNames[doc]
	if !ok {
		return "", fmt.Errorf("unknown document %q", doc)
	}
	return filepath.Join(j.dir, name), nil
}

func (j *JSONFiles) Load(_ context.Context, doc Doc, v any) (bool, error) {
	path, err := j.path(doc)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (j *JSONFiles) Save(_ context.Context, doc Doc, v any) error {
	path, err := j.path(doc)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc, err)
	}
	return file.WriteAtomic(path, data, 0o644)
}

func (j *JSONFiles) Close() error {
	return nil
}
