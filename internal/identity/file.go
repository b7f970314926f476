package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// playerFile mirrors the "player" key the browser client kept in localStorage.
const playerFile = "player.json"

// FileStore keeps the identity record as a JSON file under a state directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, playerFile)
}

func (s *FileStore) Load() (*LocalIdentity, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}

	var ident LocalIdentity
	if err := json.Unmarshal(data, &ident); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	return &ident, nil
}

func (s *FileStore) Save(ident *LocalIdentity) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(ident, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}
