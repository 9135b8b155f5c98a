package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sable-dev/sable/pkg/models"
)

// archiveTimeFormat keeps archive filenames sortable by creation time.
const archiveTimeFormat = "20060102-150405.000"

// writeJSONAtomic writes v as indented JSON via a temp file in the target
// directory followed by a rename.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("memory: create dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("memory: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("memory: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("memory: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("memory: rename: %w", err)
	}
	return nil
}

// archivePath builds the append-only archive filename for a context.
func archivePath(dir, sessionID string, now time.Time) string {
	name := fmt.Sprintf("%s-%s.json", sanitizeID(sessionID), now.UTC().Format(archiveTimeFormat))
	return filepath.Join(dir, name)
}

// snapshotPath builds the one-file-per-session snapshot filename.
func snapshotPath(dir, sessionID string) string {
	return filepath.Join(dir, sanitizeID(sessionID)+".json")
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

// readSnapshot loads a session snapshot from disk.
func readSnapshot(dir, sessionID string) (*models.AgenticContext, error) {
	data, err := os.ReadFile(snapshotPath(dir, sessionID))
	if err != nil {
		return nil, err
	}
	var ac models.AgenticContext
	if err := json.Unmarshal(data, &ac); err != nil {
		return nil, fmt.Errorf("memory: decode snapshot: %w", err)
	}
	return &ac, nil
}

// ListArchives returns the archive filenames in dir, oldest first.
func ListArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
