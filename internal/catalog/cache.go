package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var ErrDigestMismatch = errors.New("catalog digest mismatch")

type cacheFile struct {
	Digest  string  `yaml:"digest"`
	Entries []Entry `yaml:"entries"`
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Digest is the sha256 of the entries' canonical JSON encoding.
func Digest(entries []Entry) string {
	if entries == nil {
		entries = []Entry{}
	}
	b, _ := json.Marshal(entries)
	return sha256Hex(b)
}

func SaveFile(path string, entries []Entry) error {
	b, err := yaml.Marshal(cacheFile{Digest: Digest(entries), Entries: entries})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func LoadFile(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f cacheFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(f.Entries) == 0 {
		return nil, fmt.Errorf("%s: no entries", filepath.Base(path))
	}
	if got := Digest(f.Entries); got != f.Digest {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrDigestMismatch)
	}
	return f.Entries, nil
}
