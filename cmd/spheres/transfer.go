package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	cl "spheres/internal/cli"
	"spheres/internal/game"
	"spheres/internal/save"
	"spheres/internal/syncq"

	"github.com/google/uuid"
	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var qr bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the save as a password protected string",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptNewPassword()
			if err != nil {
				return err
			}
			blob, err := save.Export(a.loadCore().Serialize(), password)
			if err != nil {
				return err
			}
			fmt.Println(blob)
			if qr {
				qrterminal.GenerateHalfBlock(blob, qrterminal.L, os.Stdout)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&qr, "qr", false, "also render the export as a QR code")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [blob]",
		Short: "Replace the save with an exported string",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var blob string
			if len(args) > 0 {
				blob = args[0]
			} else {
				var err error
				if blob, err = promptRequired("Export string"); err != nil {
					return err
				}
			}
			password, err := promptPassword("Export password")
			if err != nil {
				return err
			}
			rec, err := save.Import(blob, password)
			if err != nil {
				return err
			}
			if err := a.replaceSave(rec); err != nil {
				return err
			}
			printSuccess("Save imported.")
			return nil
		},
	}
}

// replaceSave applies rec to a fresh core first so a bad record never
// overwrites a good save.
func (a *app) replaceSave(rec game.Record) error {
	c := game.New(a.catalog, nil, a.log)
	if err := c.Apply(rec); err != nil {
		return fmt.Errorf("import rejected: %w", err)
	}
	return a.persist(c)
}

func newVaultCmd(a *app) *cobra.Command {
	vault := &cobra.Command{
		Use:   "vault",
		Short: "Back up encrypted saves to a vault server",
	}
	vault.PersistentFlags().StringVar(&a.cfg.VaultURL, "url", a.cfg.VaultURL, "vault base url")
	vault.AddCommand(newVaultCreateCmd(a), newVaultPushCmd(a), newVaultPullCmd(a), newVaultSyncCmd(a))
	return vault
}

func (a *app) client() *cl.Client {
	return cl.NewClient(strings.TrimSpace(a.cfg.VaultURL))
}

func (a *app) slot() (cl.Slot, error) {
	slot, err := cl.LoadSlot(a.cfg.SaveDir)
	if errors.Is(err, cl.ErrNoSlot) {
		return cl.Slot{}, fmt.Errorf("%w, run `spheres vault create`", err)
	}
	if err != nil {
		return cl.Slot{}, err
	}
	if slot.OtherVault(a.cfg.VaultURL) {
		printWarn(fmt.Sprintf("Slot was created on %s, talking to %s.", slot.VaultURL, a.cfg.VaultURL))
	}
	return slot, nil
}

func newVaultCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a vault slot for this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if existing, err := cl.LoadSlot(a.cfg.SaveDir); err == nil {
				printWarn(fmt.Sprintf("Replacing slot %s.", existing.SlotID))
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			creds, err := a.client().CreateSlot(ctx)
			if err != nil {
				return err
			}
			if err := cl.SaveSlot(a.cfg.SaveDir, cl.Slot{SlotID: creds.SlotID, Token: creds.Token, VaultURL: a.cfg.VaultURL}); err != nil {
				return err
			}
			printSuccess("Vault slot created: " + creds.SlotID)
			printInfo("Keep " + cl.SlotFilePath(a.cfg.SaveDir) + " safe; its token is the only key to the slot.")
			return nil
		},
	}
}

func newVaultPushCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload the encrypted save",
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := a.slot()
			if err != nil {
				return err
			}
			password, err := promptNewPassword()
			if err != nil {
				return err
			}
			blob, err := save.Export(a.loadCore().Serialize(), password)
			if err != nil {
				return err
			}

			var base *int64
			if !force {
				base = &slot.Revision
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().PutBlob(ctx, slot, blob, base, idem)
			if err != nil {
				return a.queueOnNetworkError(err, syncq.Command{
					Method:         http.MethodPut,
					Path:           cl.SlotPath(slot.SlotID),
					Body:           cl.PutBody(blob, nil),
					IdempotencyKey: idem,
					QueuedAt:       time.Now().UTC(),
				})
			}
			slot.Seen(out.Revision)
			if err := cl.SaveSlot(a.cfg.SaveDir, slot); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Uploaded revision %d.", out.Revision))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite even if the vault holds a newer upload")
	return cmd
}

func newVaultPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download and restore the encrypted save",
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := a.slot()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().GetBlob(ctx, slot)
			if err != nil {
				return err
			}
			if out.Revision == 0 || out.Blob == "" {
				printInfo("The vault slot is empty.")
				return nil
			}
			password, err := promptPassword("Export password")
			if err != nil {
				return err
			}
			rec, err := save.Import(out.Blob, password)
			if err != nil {
				return err
			}
			if err := a.replaceSave(rec); err != nil {
				return err
			}
			slot.Revision = out.Revision
			if err := cl.SaveSlot(a.cfg.SaveDir, slot); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Restored revision %d.", out.Revision))
			return nil
		},
	}
}

func newVaultSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay uploads queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := a.slot()
			if err != nil {
				return err
			}
			queue, err := syncq.Load(a.cfg.SaveDir)
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := a.client()
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			sent, err := syncq.Drain(ctx, a.cfg.SaveDir, func(ctx context.Context, q syncq.Command) error {
				var out struct {
					Revision int64 `json:"revision"`
				}
				if err := client.Do(ctx, q.Method, q.Path, slot.Token, q.Body, q.IdempotencyKey, &out); err != nil {
					return err
				}
				slot.Seen(out.Revision)
				return nil
			})
			if saveErr := cl.SaveSlot(a.cfg.SaveDir, slot); saveErr != nil {
				return saveErr
			}
			if err != nil {
				printError(fmt.Sprintf("Sync stopped after %d of %d: %v", sent, len(queue), err))
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d", sent))
			return nil
		},
	}
}

// queueOnNetworkError keeps uploads that never reached the vault. Errors the
// vault answered are returned as is.
func (a *app) queueOnNetworkError(err error, cmd syncq.Command) error {
	var se *cl.StatusError
	if errors.As(err, &se) {
		if se.Code == http.StatusConflict {
			return fmt.Errorf("%w (pull first, or push --force)", err)
		}
		return err
	}
	if qerr := syncq.PushLatest(a.cfg.SaveDir, cmd); qerr != nil {
		return fmt.Errorf("request failed and could not be queued: %w", errors.Join(err, qerr))
	}
	a.log.Warn("vault unreachable, upload queued", "err", err, "path", cmd.Path)
	printWarn("Vault unreachable; upload queued. Run `spheres vault sync` later.")
	return nil
}
