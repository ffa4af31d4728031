package tui

import (
	"fmt"
	"strings"
	"time"

	"kaleido/internal/analysis"
	"kaleido/internal/controls"
	"kaleido/internal/tempo"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/harmonica"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	panelFPS   = 30
	meterWidth = 32
)

var (
	labelStyle = lipgloss.NewStyle().Width(16)
	valueStyle = lipgloss.NewStyle().Width(10).Align(lipgloss.Right)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C80"))
	meterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
)

// BandSource provides the latest band reading.
type BandSource interface {
	Latest() analysis.BandEnergies
}

// Tapper registers a tempo tap.
type Tapper interface {
	Tap() (tempo.Estimate, bool)
}

type panelKeys struct {
	Up, Down, Left, Right, Tap, Spin, Quit key.Binding
}

func (k panelKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Left, k.Tap, k.Spin, k.Quit}
}

func (k panelKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Left, k.Right}, {k.Tap, k.Spin, k.Quit}}
}

var defaultKeys = panelKeys{
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "select")),
	Down:  key.NewBinding(key.WithKeys("down", "j")),
	Left:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "adjust")),
	Right: key.NewBinding(key.WithKeys("right", "l")),
	Tap:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "tap tempo")),
	Spin:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto spin")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

// meter is one spring-animated band level.
type meter struct {
	label    string
	pos, vel float64
}

// PanelModel is the Bubble Tea model of the control panel.
type PanelModel struct {
	store  *controls.Store
	bands  BandSource
	tapper Tapper

	fields   []controls.Field
	selected int
	keys     panelKeys
	help     help.Model

	spring harmonica.Spring
	meters [4]meter
	tempo  *tempo.Estimate
	width  int
}

// NewPanel returns a panel editing store. bands and tapper may be nil.
func NewPanel(store *controls.Store, bands BandSource, tapper Tapper) PanelModel {
	return PanelModel{
		store:  store,
		bands:  bands,
		tapper: tapper,
		fields: controls.Fields(),
		keys:   defaultKeys,
		help:   help.New(),
		spring: harmonica.NewSpring(harmonica.FPS(panelFPS), 6.0, 0.5),
		meters: [4]meter{{label: "bass"}, {label: "mids"}, {label: "highs"}, {label: "flux"}},
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/panelFPS, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the meter animation.
func (m PanelModel) Init() tea.Cmd {
	return tick()
}

// Selected returns the highlighted field.
func (m PanelModel) Selected() controls.Field {
	return m.fields[m.selected]
}

// Update handles keys and animation ticks.
func (m PanelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		m.animate()
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.selected = (m.selected - 1 + len(m.fields)) % len(m.fields)
		case key.Matches(msg, m.keys.Down):
			m.selected = (m.selected + 1) % len(m.fields)
		case key.Matches(msg, m.keys.Left):
			_, _ = m.store.Step(m.Selected(), -1)
		case key.Matches(msg, m.keys.Right):
			_, _ = m.store.Step(m.Selected(), 1)
		case key.Matches(msg, m.keys.Spin):
			_, _ = m.store.Step(controls.FieldAutoSpin, 1)
		case key.Matches(msg, m.keys.Tap):
			if m.tapper != nil {
				if est, ok := m.tapper.Tap(); ok {
					m.tempo = &est
				}
			}
		}
	}
	return m, nil
}

// animate pulls each meter toward the latest reading.
func (m *PanelModel) animate() {
	if m.bands == nil {
		return
	}
	b := m.bands.Latest()
	for i, target := range [4]float64{b.Bass, b.Mids, b.Highs, b.Flux} {
		mt := &m.meters[i]
		mt.pos, mt.vel = m.spring.Update(mt.pos, mt.vel, target)
	}
}

// View renders the panel.
func (m PanelModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("kaleido"))
	sb.WriteString("\n\n")

	c := m.store.Load()
	for i, f := range m.fields {
		line := labelStyle.Render(string(f)) + valueStyle.Render(formatValue(c, f))
		if i == m.selected {
			sb.WriteString(highlightStyle.Render("▶ " + line))
		} else {
			sb.WriteString("  " + line)
		}
		sb.WriteByte('\n')
	}

	sb.WriteByte('\n')
	for _, mt := range m.meters {
		sb.WriteString(labelStyle.Render("  " + mt.label))
		sb.WriteString(meterStyle.Render(bar(mt.pos, meterWidth)))
		sb.WriteByte('\n')
	}

	sb.WriteByte('\n')
	if m.tempo != nil {
		sb.WriteString(infoStyle.Render(fmt.Sprintf("  %.1f BPM  (%v per beat)", m.tempo.BPM, m.tempo.Interval.Round(time.Millisecond))))
	} else {
		sb.WriteString(dimStyle.Render("  tap space on the beat"))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func formatValue(c controls.Controls, f controls.Field) string {
	if f == controls.FieldAutoSpin {
		if c.AutoSpin {
			return "on"
		}
		return "off"
	}
	v, _ := c.Get(f)
	if r, _ := controls.RangeOf(f); r.Integer {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// bar draws v in [0,1] as a width-cell bar with eighth-block resolution.
func bar(v float64, width int) string {
	const partials = " ▏▎▍▌▋▊▉"
	v = min(1, max(0, v))
	eighths := int(v*float64(width*8) + 0.5)
	full, rest := eighths/8, eighths%8

	var sb strings.Builder
	sb.WriteString(strings.Repeat("█", full))
	if full < width {
		sb.WriteRune([]rune(partials)[rest])
		sb.WriteString(strings.Repeat(" ", width-full-1))
	}
	return sb.String()
}

// NewPanelProgram returns a full-screen program running m.
func NewPanelProgram(m PanelModel, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}
