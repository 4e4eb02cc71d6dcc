package vault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrBadToken         = errors.New("invalid slot token")
	ErrBlobTooLarge     = errors.New("blob too large")
	ErrEmptyBlob        = errors.New("blob is empty")
	ErrRevisionConflict = errors.New("revision conflict")
)

// Slot is one stored backup. Blob is an opaque encrypted export; the vault
// never sees plaintext game state.
type Slot struct {
	ID         uuid.UUID
	TokenHash  string
	Blob       string
	Revision   int64
	LastPutKey string
	UpdatedAt  time.Time
}

type Credentials struct {
	SlotID string `json:"slot_id"`
	Token  string `json:"token"`
}

type Blob struct {
	SlotID    string    `json:"slot_id"`
	Blob      string    `json:"blob"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Repository interface {
	Insert(ctx context.Context, slot Slot) error
	Get(ctx context.Context, id uuid.UUID) (Slot, error)
	// Update replaces the blob when the stored revision still equals expected
	// and returns the new revision.
	Update(ctx context.Context, id uuid.UUID, expected int64, blob, putKey string, at time.Time) (int64, error)
	// DeleteEmpty removes slots that never received a blob and were created
	// before cutoff.
	DeleteEmpty(ctx context.Context, cutoff time.Time) (int64, error)
}

type PutInput struct {
	SlotID string
	Token  string
	Blob   string
	// BaseRevision guards against overwriting a newer upload; negative skips the check.
	BaseRevision   int64
	IdempotencyKey string
}

type Service struct {
	repo     Repository
	log      *slog.Logger
	maxBytes int
	now      func() time.Time
}

func NewService(repo Repository, maxBytes int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		log:      logger,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

func (s *Service) CreateSlot(ctx context.Context) (Credentials, error) {
	token, err := newToken()
	if err != nil {
		return Credentials{}, fmt.Errorf("generate token: %w", err)
	}
	slot := Slot{
		ID:        uuid.New(),
		TokenHash: hashToken(token),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, slot); err != nil {
		return Credentials{}, fmt.Errorf("insert slot: %w", err)
	}
	s.log.Info("slot created", "slot_id", slot.ID.String())
	return Credentials{SlotID: slot.ID.String(), Token: token}, nil
}

func (s *Service) PutBlob(ctx context.Context, in PutInput) (Blob, error) {
	blob := strings.TrimSpace(in.Blob)
	if blob == "" {
		return Blob{}, ErrEmptyBlob
	}
	if s.maxBytes > 0 && len(blob) > s.maxBytes {
		return Blob{}, fmt.Errorf("%w: %d > %d bytes", ErrBlobTooLarge, len(blob), s.maxBytes)
	}
	slot, err := s.authorize(ctx, in.SlotID, in.Token)
	if err != nil {
		return Blob{}, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" && key == slot.LastPutKey && blob == slot.Blob {
		return toBlob(slot), nil
	}
	if in.BaseRevision >= 0 && in.BaseRevision != slot.Revision {
		return Blob{}, fmt.Errorf("%w: base %d, stored %d", ErrRevisionConflict, in.BaseRevision, slot.Revision)
	}

	at := s.now().UTC()
	rev, err := s.repo.Update(ctx, slot.ID, slot.Revision, blob, key, at)
	if err != nil {
		return Blob{}, err
	}
	s.log.Info("slot updated", "slot_id", slot.ID.String(), "revision", rev, "bytes", len(blob))
	return Blob{SlotID: slot.ID.String(), Blob: blob, Revision: rev, UpdatedAt: at}, nil
}

func (s *Service) GetBlob(ctx context.Context, slotID, token string) (Blob, error) {
	slot, err := s.authorize(ctx, slotID, token)
	if err != nil {
		return Blob{}, err
	}
	return toBlob(slot), nil
}

// PruneEmpty drops slots that were created but never written within maxAge.
func (s *Service) PruneEmpty(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-maxAge)
	n, err := s.repo.DeleteEmpty(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune slots: %w", err)
	}
	if n > 0 {
		s.log.Info("empty slots pruned", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (s *Service) authorize(ctx context.Context, slotID, token string) (Slot, error) {
	id, err := uuid.Parse(strings.TrimSpace(slotID))
	if err != nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrSlotNotFound, slotID)
	}
	slot, err := s.repo.Get(ctx, id)
	if err != nil {
		return Slot{}, err
	}
	got := hashToken(strings.TrimSpace(token))
	if subtle.ConstantTimeCompare([]byte(got), []byte(slot.TokenHash)) != 1 {
		s.log.Warn("slot token rejected", "slot_id", id.String())
		return Slot{}, ErrBadToken
	}
	return slot, nil
}

func toBlob(slot Slot) Blob {
	return Blob{
		SlotID:    slot.ID.String(),
		Blob:      slot.Blob,
		Revision:  slot.Revision,
		UpdatedAt: slot.UpdatedAt,
	}
}

func newToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
