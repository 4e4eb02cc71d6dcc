package syncq

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Command is a vault request that could not be delivered yet.
type Command struct {
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	QueuedAt       time.Time      `json:"queued_at"`
}

func NewCommand(method, path string, body map[string]any) Command {
	return Command{
		Method:         method,
		Path:           path,
		Body:           body,
		IdempotencyKey: uuid.NewString(),
		QueuedAt:       time.Now().UTC(),
	}
}

func queuePath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load(dir string) ([]Command, error) {
	path, err := queuePath(dir)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(dir string, commands []Command) error {
	path, err := queuePath(dir)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(dir string, cmd Command) error {
	commands, err := Load(dir)
	if err != nil {
		return err
	}
	commands = append(commands, cmd)
	return Save(dir, commands)
}

// PushLatest queues cmd and drops older commands for the same method and
// path. A newer blob upload supersedes every older one.
func PushLatest(dir string, cmd Command) error {
	commands, err := Load(dir)
	if err != nil {
		return err
	}
	kept := commands[:0]
	for _, c := range commands {
		if c.Method == cmd.Method && c.Path == cmd.Path {
			continue
		}
		kept = append(kept, c)
	}
	kept = append(kept, cmd)
	return Save(dir, kept)
}

// Drain sends queued commands in order and stops at the first failure,
// keeping it and everything after it for the next attempt.
func Drain(ctx context.Context, dir string, send func(context.Context, Command) error) (int, error) {
	commands, err := Load(dir)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, cmd := range commands {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := send(ctx, cmd); err != nil {
			if saveErr := Save(dir, commands[sent:]); saveErr != nil {
				return sent, saveErr
			}
			return sent, err
		}
		sent++
	}
	return sent, Save(dir, commands[sent:])
}
