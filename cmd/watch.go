package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	watchInterval time.Duration // Pause between ticks in the terminal view
	reloadConfig  bool          // Re-read the config file when it changes
)

// watchCmd runs the simulation in an interactive terminal view
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the store in an interactive terminal view",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		cfg := mustLoadConfig(cmd)
		// The alt screen owns stdout; keep library logs out of it.
		if logrus.GetLevel() > logrus.ErrorLevel {
			logrus.SetLevel(logrus.ErrorLevel)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sess, err := newSession(ctx, cfg, !noLLM)
		if err != nil {
			return err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				logrus.Errorf("closing trace sinks: %v", err)
			}
		}()

		p := tea.NewProgram(newWatchModel(sess, watchInterval, verbose), tea.WithAltScreen())
		if reloadConfig {
			if err := watchConfig(ctx, configPath, func(c Config) { p.Send(configReloadedMsg{cfg: c}) }); err != nil {
				return err
			}
		}
		_, err = p.Run()
		return err
	},
}

type stepMsg time.Time

// watchModel drives the simulation from bubbletea's update loop, so Tick
// only ever runs on one goroutine.
type watchModel struct {
	sess     *session
	interval time.Duration
	paused   bool
	force    bool // next tick attempts a conversation regardless of period
	verbose  bool
	help     bool
	focus    int // index into Actors() whose memory the side panel shows
	width    int
	height   int
}

func newWatchModel(sess *session, interval time.Duration, verbose bool) watchModel {
	if interval <= 0 {
		interval = 150 * time.Millisecond
	}
	return watchModel{sess: sess, interval: interval, verbose: verbose, width: 120, height: 40}
}

func (m watchModel) Init() tea.Cmd {
	return m.stepCmd()
}

func (m watchModel) stepCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return stepMsg(t) })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
			if m.paused {
				m.sess.Sim.AddLog("Paused.")
			} else {
				m.sess.Sim.AddLog("Resumed.")
			}
		case "c":
			m.force = true
			if m.paused {
				m.step()
			}
		case "l":
			m.verbose = !m.verbose
			m.sess.Sim.AddLog(fmt.Sprintf("Verbose %s.", onOff(m.verbose)))
		case "?":
			m.help = !m.help
		case "tab":
			if n := len(m.sess.Sim.Actors()); n > 0 {
				m.focus = (m.focus + 1) % n
			}
		}
	case configReloadedMsg:
		if err := m.sess.retune(msg.cfg); err != nil {
			m.sess.Sim.AddLog(fmt.Sprintf("Config reload failed: %v", err))
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case stepMsg:
		if !m.paused {
			m.step()
		}
		return m, m.stepCmd()
	}
	return m, nil
}

func (m *watchModel) step() {
	m.sess.Sim.Tick(m.force, m.verbose)
	m.force = false
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

const sidePanelWidth = 40

func (m watchModel) View() string {
	s := m.sess.Sim
	rows, cols := s.Grid.Size()
	logRows := 8
	if avail := m.height - logRows - 4; avail < rows {
		rows = max(avail, 0)
	}
	if avail := m.width - sidePanelWidth - 6; avail < cols {
		cols = max(avail, 0)
	}
	floor := panelStyle.Render(strings.Join(s.RenderableGrid(rows, cols), "\n"))
	side := panelStyle.Width(sidePanelWidth).Render(m.sidePanel(rows))
	top := lipgloss.JoinHorizontal(lipgloss.Top, floor, side)

	status := s.Status()
	if m.paused {
		status += " | " + activeStyle.Render(" PAUSED ")
	}
	if m.verbose {
		status += " | verbose"
	}
	logs := mutedStyle.Render(strings.Join(s.RecentLogs(logRows), "\n"))
	footer := mutedStyle.Render("q quit  p pause  c converse  l verbose  tab memory  ? help")
	return lipgloss.JoinVertical(lipgloss.Left, headerStyle.Render(status), top, logs, footer)
}

func (m watchModel) sidePanel(height int) string {
	if m.help {
		return strings.Join([]string{
			headerStyle.Render("Keys"),
			"q    quit",
			"p    pause / resume",
			"c    force a conversation next tick",
			"l    toggle verbose line sources",
			"tab  cycle memory panel actor",
			"?    close this help",
		}, "\n")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Topics") + "\n")
	for _, tc := range m.sess.Manager.TopicStats(5) {
		fmt.Fprintf(&b, "%-28s %d\n", tc.Topic, tc.Count)
	}

	actors := m.sess.Sim.Actors()
	if len(actors) > 0 {
		a := actors[m.focus%len(actors)]
		fmt.Fprintf(&b, "\n%s\n", headerStyle.Render(fmt.Sprintf("%s (%s, %s)", a.Name, a.MoodLabel, a.State())))
		dump := a.Memory.Dump(2)
		speakers := make([]string, 0, len(dump))
		for sp := range dump {
			speakers = append(speakers, sp)
		}
		sort.Strings(speakers)
		if len(speakers) == 0 {
			b.WriteString(mutedStyle.Render("remembers nothing yet") + "\n")
		}
		for _, sp := range speakers {
			for _, line := range dump[sp] {
				fmt.Fprintf(&b, "%s: %s\n", sp, line)
			}
		}
	}
	return truncateLines(b.String(), height)
}

func truncateLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 150*time.Millisecond, "Pause between ticks")
	watchCmd.Flags().BoolVar(&verbose, "verbose", false, "Show the source and topic of every line")
	watchCmd.Flags().BoolVar(&reloadConfig, "reload", false, "Apply simulation and dialogue changes when the config file is saved")
	rootCmd.AddCommand(watchCmd)
}
