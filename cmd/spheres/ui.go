package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"spheres/internal/game"
	"spheres/internal/meta"
	"spheres/internal/rate"
	"spheres/internal/stage"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
	muted       = color.New(color.FgHiBlack)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

// promptPassword reads without echo on a terminal and falls back to a plain
// line when stdin is piped.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if pw := strings.TrimSpace(string(raw)); pw != "" {
			return pw, nil
		}
		printWarn(label + " is required.")
	}
}

func promptNewPassword() (string, error) {
	pw, err := promptPassword("Export password")
	if err != nil {
		return "", err
	}
	again, err := promptPassword("Repeat password")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}

func renderStatus(v game.View) {
	accent.Printf("\n== STAGE %d: %s ==\n", v.Stage+1, v.StageName)
	switch {
	case v.Won:
		success.Println("All stages complete. The game is won.")
	case v.Phase != game.PhaseSimulating:
		warn.Printf("Run %s. Pick a stage to continue.\n", v.Phase)
	}

	fmt.Printf("Units:        %s\n", comma(v.TotalUnits))
	fmt.Printf("Threshold:    %s\n", formatFloat(v.Rate.Threshold))
	fmt.Printf("Base rate:    %s/s\n", formatFloat(v.Rate.BaseRate))
	fmt.Printf("Multiplier:   x%s\n", formatFloat(v.Rate.Multiplier))
	fmt.Printf("Speed:        %s/s\n", formatFloat(v.Rate.Speed))
	fmt.Printf("Stage points: %d\n", v.StagePoints)
	fmt.Printf("Play time:    %s\n", formatDuration(v.PlayTime))

	fmt.Println()
	accent.Printf("Rings (%d to complete)\n", v.SlotCount)
	for i := 1; i < len(v.Rings) && i <= v.SlotCount; i++ {
		r := v.Rings[i]
		line := fmt.Sprintf("  %2d  %s  %s/%s", i, textBar(r.Progress/v.Rate.Threshold, 24), formatFloat(r.Progress), formatFloat(v.Rate.Threshold))
		if r.Solid {
			success.Println(line)
		} else {
			fmt.Println(line)
		}
	}

	fmt.Println()
	accent.Println("Upgrades")
	for i := 0; i < rate.UpgradeCount; i++ {
		line := fmt.Sprintf("  [%d] %-12s lvl %-3d cost %s", i+1, rate.UpgradeLabel(i), v.Levels[i], comma(v.Rate.Costs[i]))
		switch {
		case !v.Rate.Purchasable[i]:
			muted.Println(line + "  (locked)")
		case v.Rate.Costs[i] <= v.TotalUnits:
			success.Println(line)
		default:
			fmt.Println(line)
		}
	}
	fmt.Println()
}

func renderStages(catalog stage.Catalog, v game.View) {
	accent.Println("\n== STAGES ==")
	for i, def := range catalog.Stages {
		var status string
		c := neutral
		switch {
		case i < len(v.Completed) && v.Completed[i]:
			status, c = "done", success
		case i == v.Stage:
			status, c = "active", accent
		case !catalog.Unlocked(i, v.Completed):
			status, c = "locked", muted
		default:
			status = "open"
		}
		reward := fmt.Sprintf("+%d pt", def.Reward)
		if def.Final {
			reward = "win"
		}
		c.Printf("  %d  %-22s %-7s loops %-3d %s\n", i+1, def.Name, status, def.Loops, reward)
		if def.Description != "" {
			muted.Printf("     %s\n", def.Description)
		}
	}
	fmt.Println()
}

func renderRemoteStages(stages []map[string]any) {
	accent.Println("\n== VAULT STAGES ==")
	for _, st := range stages {
		idx, _ := st["index"].(float64)
		name, _ := st["name"].(string)
		loops, _ := st["loops"].(float64)
		fmt.Printf("  %d  %-22s loops %d\n", int(idx)+1, name, int(loops))
	}
	fmt.Println()
}

func renderMeta(v game.View) {
	accent.Printf("\n== STAGE POINT UPGRADES (%d points) ==\n", v.StagePoints)
	for i := 0; i < meta.Count; i++ {
		u := meta.Upgrade(i)
		line := fmt.Sprintf("  [%d] %-13s %d pt", i+1, u.Label(), u.Cost())
		switch {
		case v.MetaOwned[i]:
			success.Println(line + "  owned")
		case u.Cost() > v.StagePoints:
			muted.Println(line)
		default:
			fmt.Println(line)
		}
		for _, d := range u.Description() {
			muted.Printf("       %s\n", d)
		}
	}
	fmt.Println()
}

func textBar(frac float64, width int) string {
	if frac < 0 || frac != frac {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func formatFloat(v float64) string {
	switch {
	case v >= 1e6:
		return strconv.FormatFloat(v, 'e', 2, 64)
	case v == float64(int64(v)):
		return strconv.FormatInt(int64(v), 10)
	default:
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
}

func formatDuration(seconds float64) string {
	total := int64(seconds)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
