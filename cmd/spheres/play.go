package main

import (
	"fmt"
	"strings"
	"time"

	"spheres/internal/game"
	"spheres/internal/meta"
	"spheres/internal/rate"
	"spheres/internal/stage"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

const feedSize = 5

type frameMsg time.Time

type mode int

const (
	modeRun mode = iota
	modePicker
	modeMeta
)

type keyMap struct {
	Buy     [rate.UpgradeCount]key.Binding
	Meta    [meta.Count]key.Binding
	Picker  key.Binding
	MetaTab key.Binding
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Respec  key.Binding
	Dismiss key.Binding
	Dev     key.Binding
	Faster  key.Binding
	Slower  key.Binding
	Reset   key.Binding
	Back    key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	k := keyMap{
		Picker:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "stages")),
		MetaTab: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "stage points")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Respec:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "respec")),
		Dismiss: key.NewBinding(key.WithKeys("x", " "), key.WithHelp("x", "continue")),
		Dev:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dev tools")),
		Faster:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
		Slower:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "slower")),
		Reset:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "save & quit")),
	}
	for i := range k.Buy {
		n := fmt.Sprint(i + 1)
		k.Buy[i] = key.NewBinding(key.WithKeys(n), key.WithHelp(n, rate.UpgradeLabel(i)))
	}
	for i := range k.Meta {
		n := fmt.Sprint(i + 1)
		k.Meta[i] = key.NewBinding(key.WithKeys(n), key.WithHelp(n, meta.Upgrade(i).Label()))
	}
	return k
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Buy[0], k.Buy[1], k.Buy[2], k.Buy[3], k.Picker, k.MetaTab, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		k.ShortHelp(),
		{k.Up, k.Down, k.Select, k.Respec, k.Back},
		{k.Dev, k.Faster, k.Slower, k.Reset},
	}
}

// feed collects core events between frames. Update and the core run on
// the same goroutine, so it needs no locking.
type feed struct {
	lines     []string
	pickerDue bool
}

func (f *feed) push(line string) {
	if line == "" {
		return
	}
	f.lines = append(f.lines, line)
	if len(f.lines) > feedSize {
		f.lines = f.lines[len(f.lines)-feedSize:]
	}
}

type playModel struct {
	a           *app
	core        *game.Core
	feed        *feed
	unsubscribe func()

	keys      keyMap
	help      help.Model
	bar       progress.Model
	solidBar  progress.Model
	frame     time.Duration
	autosave  time.Duration
	last      time.Time
	sinceSave time.Duration

	mode         mode
	cursor       int
	confirmReset bool
	width        int
}

func newPlayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Run the game interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := newPlayModel(a)
			defer m.unsubscribe()
			_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			a.store.SaveBestEffort(m.core.Serialize())
			if err != nil && err != tea.ErrProgramKilled {
				return err
			}
			return nil
		},
	}
}

func newPlayModel(a *app) *playModel {
	m := &playModel{
		a:        a,
		core:     a.loadCore(),
		feed:     &feed{},
		keys:     newKeyMap(),
		help:     help.New(),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
		solidBar: progress.New(progress.WithSolidFill("#70ffa3"), progress.WithoutPercentage(), progress.WithWidth(40)),
		frame:    time.Second / time.Duration(a.cfg.FrameRate),
		autosave: a.cfg.AutosaveEvery,
		width:    80,
	}
	m.unsubscribe = m.core.Subscribe(func(ev game.Event) {
		if ev.Kind == game.EventStagePickerDue {
			m.feed.pickerDue = true
		}
		m.feed.push(describeEvent(m.a.catalog, ev))
	})
	if m.core.View().RequireChange {
		m.openPicker()
	}
	return m
}

func (m *playModel) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m *playModel) Init() tea.Cmd {
	m.last = time.Now()
	return m.tick()
}

func (m *playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := max(10, min(60, msg.Width-24))
		m.bar.Width = w
		m.solidBar.Width = w
		m.help.Width = msg.Width
		return m, nil

	case frameMsg:
		now := time.Time(msg)
		dt := game.ClampDelta(now.Sub(m.last).Seconds())
		m.last = now
		m.core.Advance(dt)

		m.sinceSave += time.Duration(dt * float64(time.Second))
		if m.sinceSave >= m.autosave {
			m.sinceSave = 0
			m.a.store.SaveBestEffort(m.core.Serialize())
		}
		if m.feed.pickerDue {
			m.feed.pickerDue = false
			m.openPicker()
		}
		return m, m.tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *playModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.a.store.SaveBestEffort(m.core.Serialize())
		return m, tea.Quit
	}
	if !key.Matches(msg, m.keys.Reset) {
		m.confirmReset = false
	}

	v := m.core.View()
	if v.Won {
		if key.Matches(msg, m.keys.Dismiss) && !m.core.DismissWin() {
			m.feed.push("wait a moment...")
		}
		return m, nil
	}

	switch m.mode {
	case modePicker:
		m.handlePickerKey(msg)
		return m, nil
	case modeMeta:
		m.handleMetaKey(msg)
		return m, nil
	}

	for i, b := range m.keys.Buy {
		if key.Matches(msg, b) {
			if !m.core.BuyUpgrade(i) {
				m.feed.push("cannot buy " + rate.UpgradeLabel(i))
			}
			return m, nil
		}
	}
	switch {
	case key.Matches(msg, m.keys.Picker):
		m.openPicker()
	case key.Matches(msg, m.keys.MetaTab):
		m.mode = modeMeta
	case key.Matches(msg, m.keys.Dev):
		if !m.core.SetDevTools(!v.DevTools) {
			m.feed.push("dev tools unlock after the first completed stage")
		}
	case key.Matches(msg, m.keys.Faster):
		m.core.SetSpeedScale(true)
	case key.Matches(msg, m.keys.Slower):
		m.core.SetSpeedScale(false)
	case key.Matches(msg, m.keys.Select):
		m.core.ForceWin()
	case key.Matches(msg, m.keys.Reset):
		if !m.confirmReset {
			m.confirmReset = true
			m.feed.push("press R again to wipe all progress")
			break
		}
		m.confirmReset = false
		m.core.ResetAll()
		m.a.store.SaveBestEffort(m.core.Serialize())
	}
	return m, nil
}

func (m *playModel) openPicker() {
	m.mode = modePicker
	v := m.core.View()
	cat := m.a.catalog
	m.cursor = v.Stage
	for i := 0; i < cat.Count(); i++ {
		if !v.Completed[i] && cat.Unlocked(i, v.Completed) && !(v.RequireChange && i == v.Stage) {
			m.cursor = i
			return
		}
	}
}

func (m *playModel) handlePickerKey(msg tea.KeyMsg) {
	n := m.a.catalog.Count()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = (m.cursor + n - 1) % n
	case key.Matches(msg, m.keys.Down):
		m.cursor = (m.cursor + 1) % n
	case key.Matches(msg, m.keys.Select):
		if m.core.StartStage(m.cursor) {
			m.mode = modeRun
			return
		}
		m.feed.push(stageBlockReason(m.core.View(), m.a.catalog, m.cursor))
	case key.Matches(msg, m.keys.Back):
		if m.core.View().RequireChange {
			m.feed.push("pick a new stage to continue")
			return
		}
		m.mode = modeRun
	}
}

func (m *playModel) handleMetaKey(msg tea.KeyMsg) {
	for i, b := range m.keys.Meta {
		if key.Matches(msg, b) {
			if !m.core.BuyStagePointUpgrade(i) {
				m.feed.push("cannot buy " + meta.Upgrade(i).Label())
			}
			return
		}
	}
	switch {
	case key.Matches(msg, m.keys.Respec):
		if m.core.RespecStagePointUpgrades() {
			m.feed.push("stage points refunded")
		}
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.MetaTab):
		m.mode = modeRun
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8f98"))
	valueStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#70ffa3"))
	lockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4b4f57"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffc857"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	winStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffc857")).Border(lipgloss.DoubleBorder()).Padding(1, 4)
)

func (m *playModel) View() string {
	v := m.core.View()
	if v.Won {
		return m.winView(v)
	}

	var b strings.Builder
	title := titleStyle.Foreground(lipgloss.Color(stage.Color(v.Stage))).
		Render(fmt.Sprintf("STAGE %d  %s", v.Stage+1, v.StageName))
	b.WriteString(title + "\n")
	b.WriteString(m.statsLine(v) + "\n\n")

	switch m.mode {
	case modePicker:
		b.WriteString(boxStyle.Render(m.pickerView(v)))
	case modeMeta:
		b.WriteString(boxStyle.Render(m.metaView(v)))
	default:
		b.WriteString(boxStyle.Render(m.ringsView(v)))
		b.WriteString("\n")
		b.WriteString(m.upgradesView(v))
	}

	b.WriteString("\n")
	for _, line := range m.feed.lines {
		b.WriteString(labelStyle.Render("· "+line) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m *playModel) statsLine(v game.View) string {
	parts := []string{
		labelStyle.Render("units ") + valueStyle.Render(comma(v.TotalUnits)),
		labelStyle.Render("speed ") + valueStyle.Render(formatFloat(v.Rate.Speed)+"/s"),
		labelStyle.Render("mult ") + valueStyle.Render("x"+formatFloat(v.Rate.Multiplier)),
		labelStyle.Render("base ") + valueStyle.Render(formatFloat(v.Rate.Threshold)),
		labelStyle.Render("pts ") + valueStyle.Render(fmt.Sprint(v.StagePoints)),
	}
	if v.DevTools {
		parts = append(parts, cursorStyle.Render(fmt.Sprintf("dev x%s", formatFloat(v.SpeedScale))))
	}
	return strings.Join(parts, "   ")
}

func (m *playModel) ringsView(v game.View) string {
	var b strings.Builder
	switch v.Phase {
	case game.PhaseFlashing:
		b.WriteString(cursorStyle.Render(fmt.Sprintf("stage complete! %3.0f%%", v.FlashProgress*100)) + "\n")
	case game.PhaseShrinking:
		b.WriteString(cursorStyle.Render(fmt.Sprintf("collapsing %3.0f%%", v.ShrinkProgress*100)) + "\n")
	case game.PhaseParked:
		b.WriteString(cursorStyle.Render("run finished, press p to pick a stage") + "\n")
	}

	threshold := v.Rate.Threshold
	for i := v.SlotCount; i >= 0; i-- {
		frac, ticks, solid := 0.0, int64(0), false
		if i < len(v.Rings) {
			ring := v.Rings[i]
			frac = ring.Progress / threshold
			ticks = ring.Ticks
			solid = ring.Solid
		}
		bar := m.bar
		if solid {
			bar = m.solidBar
		}
		label := fmt.Sprintf("%2d", i)
		if i == 0 {
			label = "  "
		}
		line := labelStyle.Render(label) + " " + bar.ViewAs(frac) + " " + labelStyle.Render(comma(ticks))
		if i == 0 {
			line = lipgloss.NewStyle().Faint(true).Render(line)
		}
		b.WriteString(line + "\n")
	}

	if len(v.Trophies) > 0 {
		b.WriteString("\n")
		for _, t := range v.Trophies {
			if !t.Spawned {
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Render("●"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *playModel) upgradesView(v game.View) string {
	var b strings.Builder
	for i := 0; i < rate.UpgradeCount; i++ {
		line := fmt.Sprintf("[%d] %-12s lvl %-3d %s", i+1, rate.UpgradeLabel(i), v.Levels[i], comma(v.Rate.Costs[i]))
		switch {
		case !v.Rate.Purchasable[i] || v.Phase != game.PhaseSimulating:
			line = lockedStyle.Render(line)
		case v.Rate.Costs[i] <= v.TotalUnits:
			line = okStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *playModel) pickerView(v game.View) string {
	var b strings.Builder
	b.WriteString(valueStyle.Render("Choose a stage") + "\n\n")
	cat := m.a.catalog
	for i, def := range cat.Stages {
		status := ""
		style := lipgloss.NewStyle()
		switch {
		case v.Completed[i]:
			status, style = "done", okStyle
		case !cat.Unlocked(i, v.Completed):
			status, style = "locked", lockedStyle
		case v.RequireChange && i == v.Stage:
			status, style = "just played", lockedStyle
		}
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		b.WriteString(prefix + style.Render(fmt.Sprintf("%d %-22s %-11s", i+1, def.Name, status)) + "\n")
		if i == m.cursor && def.Description != "" {
			b.WriteString("    " + labelStyle.Render(def.Description) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *playModel) metaView(v game.View) string {
	var b strings.Builder
	b.WriteString(valueStyle.Render(fmt.Sprintf("Stage points: %d", v.StagePoints)) + "\n\n")
	for i := 0; i < meta.Count; i++ {
		u := meta.Upgrade(i)
		line := fmt.Sprintf("[%d] %-13s %d pt  %s", i+1, u.Label(), u.Cost(), strings.Join(u.Description(), " "))
		switch {
		case v.MetaOwned[i]:
			line = okStyle.Render(line)
		case u.Cost() > v.StagePoints:
			line = lockedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + labelStyle.Render("r: refund all and restart the stage"))
	return b.String()
}

func (m *playModel) winView(v game.View) string {
	msg := "ALL SPHERES COMPLETE"
	if v.CanDismissWin {
		msg += "\n\npress x to start over"
	}
	box := winStyle.Render(msg)
	return lipgloss.Place(m.width, 20, lipgloss.Center, lipgloss.Center, box)
}

func describeEvent(catalog stage.Catalog, ev game.Event) string {
	name := catalog.Get(ev.Stage).Name
	switch ev.Kind {
	case game.EventStageStarted:
		return fmt.Sprintf("stage %d started: %s", ev.Stage+1, name)
	case game.EventStageCompleted:
		if ev.Points > 0 {
			return fmt.Sprintf("stage %d complete, +%d stage points", ev.Stage+1, ev.Points)
		}
		return fmt.Sprintf("stage %d complete", ev.Stage+1)
	case game.EventTrophySpawned:
		return "a trophy joins the orbit"
	case game.EventStagePickerDue:
		return "choose your next stage"
	case game.EventGameWon:
		return "every stage is complete"
	case game.EventReset:
		return "progress wiped"
	}
	return ""
}
