package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const slotFile = "slot.json"

var ErrNoSlot = errors.New("no vault slot")

// Slot is the vault slot this machine uploads to, plus the newest revision
// it has seen there.
type Slot struct {
	SlotID   string `json:"slot_id"`
	Token    string `json:"token"`
	Revision int64  `json:"revision"`
	VaultURL string `json:"vault_url,omitempty"`
}

// Seen moves the known revision forward. Older revisions are ignored so a
// late sync reply cannot roll it back.
func (s *Slot) Seen(rev int64) {
	if rev > s.Revision {
		s.Revision = rev
	}
}

func (s Slot) OtherVault(url string) bool {
	return s.VaultURL != "" && strings.TrimRight(s.VaultURL, "/") != strings.TrimRight(url, "/")
}

func SlotFilePath(dir string) string {
	return filepath.Join(dir, slotFile)
}

func LoadSlot(dir string) (Slot, error) {
	body, err := os.ReadFile(SlotFilePath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return Slot{}, ErrNoSlot
	}
	if err != nil {
		return Slot{}, fmt.Errorf("read slot: %w", err)
	}
	var s Slot
	if err := json.Unmarshal(body, &s); err != nil {
		return Slot{}, fmt.Errorf("decode slot: %w", err)
	}
	if strings.TrimSpace(s.SlotID) == "" || strings.TrimSpace(s.Token) == "" {
		return Slot{}, fmt.Errorf("%w: %s has no credentials", ErrNoSlot, SlotFilePath(dir))
	}
	return s, nil
}

// SaveSlot replaces the slot file through a rename so an interrupted write
// never loses the token.
func SaveSlot(dir string, s Slot) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create slot dir: %w", err)
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	path := SlotFilePath(dir)
	if err := os.WriteFile(path+".tmp", body, 0o600); err != nil {
		return fmt.Errorf("write slot: %w", err)
	}
	return os.Rename(path+".tmp", path)
}

func ClearSlot(dir string) error {
	err := os.Remove(SlotFilePath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
