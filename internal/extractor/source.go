package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// SourceUnit is one input file as handed over by a driver.
type SourceUnit struct {
	Path    string `json:"src"`
	Content string `json:"content"`
}

// ReadSourceUnit reads path and resolves it to an absolute, symlink-free path.
func ReadSourceUnit(path string) (SourceUnit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return SourceUnit{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return SourceUnit{}, err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return SourceUnit{Path: abs, Content: string(content)}, nil
}

// ContentHash is a stable digest of the unit content.
func (u SourceUnit) ContentHash() string {
	sum := sha256.Sum256([]byte(u.Content))
	return hex.EncodeToString(sum[:])
}
