package save

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"spheres/internal/game"
)

const fileName = "save.json"

// Store keeps the local save file. Writes are best effort from the game's
// point of view; callers that cannot react to an error use SaveBestEffort.
type Store struct {
	dir string
	log *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	return &Store{dir: dir, log: logger}, nil
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, fileName)
}

// Load reads the save. A missing file returns an error matching
// os.ErrNotExist.
func (s *Store) Load() (game.Record, error) {
	raw, err := os.ReadFile(s.Path())
	if err != nil {
		return game.Record{}, err
	}
	return Decode(raw)
}

// LoadOrNil returns nil when there is no usable save, logging anything
// other than a missing file.
func (s *Store) LoadOrNil() *game.Record {
	rec, err := s.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("local save unreadable", "path", s.Path(), "err", err)
		}
		return nil
	}
	return &rec
}

// Save writes rec through a temp file so a crash never leaves half a save.
func (s *Store) Save(rec game.Record) error {
	raw, err := Encode(rec)
	if err != nil {
		return err
	}
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("replace save: %w", err)
	}
	return nil
}

func (s *Store) SaveBestEffort(rec game.Record) {
	if err := s.Save(rec); err != nil {
		s.log.Warn("autosave failed", "path", s.Path(), "err", err)
	}
}

func (s *Store) Clear() error {
	if _, err := os.Stat(s.Path()); err != nil {
		return nil
	}
	return os.Remove(s.Path())
}
