package script

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// FileProvider serves a fixed script from a JSON file. The file holds either
// a list of lines or an object with a "lines" field, in the same shape the
// LLM produces. The topic and duration are ignored.
type FileProvider struct {
	path   string
	logger *zap.Logger
}

// NewFileProvider creates a provider reading path on every request.
func NewFileProvider(path string, logger *zap.Logger) *FileProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileProvider{path: path, logger: logger}
}

// Request reads and normalizes the script file.
func (p *FileProvider) Request(ctx context.Context, _ string, _ time.Duration, _ string) ([]Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}
	raw, err := decodeRawLines(data)
	if err != nil {
		return nil, fmt.Errorf("parse script file %s: %w", p.path, err)
	}
	return Normalize(raw, p.logger)
}

func decodeRawLines(data []byte) ([]RawLine, error) {
	var list []RawLine
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Lines []RawLine `json:"lines"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Lines, nil
}
