package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"spheres/internal/config"
	"spheres/internal/game"
	"spheres/internal/logs"
	"spheres/internal/meta"
	"spheres/internal/rate"
	"spheres/internal/save"
	"spheres/internal/stage"

	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand, built once in PersistentPreRunE.
type app struct {
	cfg      config.CLIConfig
	log      *slog.Logger
	closeLog func() error
	catalog  stage.Catalog
	store    *save.Store
}

func main() {
	a := &app{cfg: config.LoadCLIFromEnv()}

	root := &cobra.Command{
		Use:          "spheres",
		Short:        "Idle ring game played in the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfg.SaveDir, "dir", a.cfg.SaveDir, "save directory")
	root.PersistentFlags().StringVar(&a.cfg.StageCatalog, "stages", a.cfg.StageCatalog, "stage catalog (.cue) override")

	root.AddCommand(
		newPlayCmd(a),
		newStatusCmd(a),
		newStagesCmd(a),
		newStageCmd(a),
		newBuyCmd(a),
		newMetaCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newResetCmd(a),
		newVaultCmd(a),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	logger, closeFn, err := logs.New(logs.Options{
		Level:   a.cfg.LogLevel,
		File:    a.cfg.LogFile,
		Console: os.Stderr,
	})
	if err != nil {
		return err
	}
	a.log = logger
	a.closeLog = closeFn
	slog.SetDefault(logger)

	catalog, err := stage.Load(a.cfg.StageCatalog)
	if err != nil {
		return err
	}
	a.catalog = catalog

	store, err := save.NewStore(a.cfg.SaveDir, logger)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

// loadCore restores the saved game, or a fresh one when there is none.
func (a *app) loadCore() *game.Core {
	c := game.Restore(a.catalog, nil, a.store.LoadOrNil(), a.log)
	if a.cfg.DevTools {
		c.SetDevTools(true)
	}
	return c
}

func (a *app) persist(c *game.Core) error {
	if err := a.store.Save(c.Serialize()); err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	return nil
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current run",
		RunE: func(cmd *cobra.Command, args []string) error {
			renderStatus(a.loadCore().View())
			return nil
		},
	}
}

func newStagesCmd(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List stages and their state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				stages, err := a.client().Stages(ctx)
				if err != nil {
					return err
				}
				renderRemoteStages(stages)
				return nil
			}
			renderStages(a.catalog, a.loadCore().View())
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "show the catalog served by the vault")
	return cmd
}

func newStageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <n>",
		Short: "Start stage n (1-based)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := indexArg(args[0], a.catalog.Count())
			if err != nil {
				return err
			}
			c := a.loadCore()
			if !c.StartStage(n) {
				return fmt.Errorf("stage %d cannot be started now (%s)", n+1, stageBlockReason(c.View(), a.catalog, n))
			}
			if err := a.persist(c); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Started stage %d: %s", n+1, a.catalog.Get(n).Name))
			return nil
		},
	}
}

func newBuyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <1-4>",
		Short: "Buy a regular upgrade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := indexArg(args[0], rate.UpgradeCount)
			if err != nil {
				return err
			}
			c := a.loadCore()
			before := c.View()
			if !c.BuyUpgrade(n) {
				return fmt.Errorf("cannot buy %s: cost %s, have %s", rate.UpgradeLabel(n), comma(before.Rate.Costs[n]), comma(before.TotalUnits))
			}
			if err := a.persist(c); err != nil {
				return err
			}
			after := c.View()
			printSuccess(fmt.Sprintf("Bought %s (level %d).", rate.UpgradeLabel(n), after.Levels[n]))
			return nil
		},
	}
}

func newMetaCmd(a *app) *cobra.Command {
	metaCmd := &cobra.Command{
		Use:   "meta",
		Short: "Stage point upgrades",
		RunE: func(cmd *cobra.Command, args []string) error {
			renderMeta(a.loadCore().View())
			return nil
		},
	}
	metaCmd.AddCommand(&cobra.Command{
		Use:   "buy <1-8>",
		Short: "Buy a stage point upgrade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := indexArg(args[0], meta.Count)
			if err != nil {
				return err
			}
			c := a.loadCore()
			u := meta.Upgrade(n)
			if !c.BuyStagePointUpgrade(n) {
				v := c.View()
				if v.MetaOwned[n] {
					return fmt.Errorf("%s is already owned", u.Label())
				}
				return fmt.Errorf("%s costs %d stage points, have %d", u.Label(), u.Cost(), v.StagePoints)
			}
			if err := a.persist(c); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Bought %s.", u.Label()))
			return nil
		},
	})
	metaCmd.AddCommand(&cobra.Command{
		Use:   "respec",
		Short: "Refund every stage point upgrade and restart the stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.loadCore()
			if !c.RespecStagePointUpgrades() {
				printInfo("Nothing to refund.")
				return nil
			}
			if err := a.persist(c); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Refunded. %d stage points available.", c.View().StagePoints))
			return nil
		},
	})
	return metaCmd
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe all progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				answer, err := promptChoice("Reset everything", []string{"yes", "no"}, "no")
				if err != nil {
					return err
				}
				if answer != "yes" {
					printInfo("Reset cancelled.")
					return nil
				}
			}
			c := a.loadCore()
			c.ResetAll()
			if err := a.persist(c); err != nil {
				return err
			}
			printWarn("All progress wiped.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

// indexArg parses a 1-based choice into a 0-based index below count.
func indexArg(raw string, count int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > count {
		return 0, fmt.Errorf("expected a number from 1 to %d, got %q", count, raw)
	}
	return n - 1, nil
}

func stageBlockReason(v game.View, catalog stage.Catalog, n int) string {
	switch {
	case v.Won:
		return "the game is won, run reset to play again"
	case n < len(v.Completed) && v.Completed[n]:
		return "already completed"
	case v.RequireChange && v.Stage == n:
		return "pick a different stage"
	case !catalog.Unlocked(n, v.Completed):
		return "complete every other stage first"
	}
	return "unavailable"
}
