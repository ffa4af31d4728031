package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"kaleido/internal/analysis"
	"kaleido/internal/audio"
	"kaleido/internal/controls"
	"kaleido/internal/tempo"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticBands analysis.BandEnergies

func (s staticBands) Latest() analysis.BandEnergies { return analysis.BandEnergies(s) }

type countingTapper struct{ taps int }

func (c *countingTapper) Tap() (tempo.Estimate, bool) {
	c.taps++
	if c.taps < 2 {
		return tempo.Estimate{}, false
	}
	return tempo.FromInterval(500 * time.Millisecond)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m tea.Model, keys ...string) tea.Model {
	t.Helper()
	for _, k := range keys {
		m, _ = m.Update(keyMsg(k))
	}
	return m
}

func TestPanelSelectionWraps(t *testing.T) {
	m := tea.Model(NewPanel(controls.NewStore(controls.Default()), nil, nil))
	assert.Equal(t, controls.FieldSegments, m.(PanelModel).Selected())

	m = press(t, m, "down")
	assert.Equal(t, controls.FieldRotation, m.(PanelModel).Selected())

	m = press(t, m, "up", "up")
	assert.Equal(t, controls.FieldAutoSpin, m.(PanelModel).Selected())
}

func TestPanelAdjustsSelectedField(t *testing.T) {
	store := controls.NewStore(controls.Default())
	m := tea.Model(NewPanel(store, nil, nil))

	press(t, m, "right", "right", "left")
	assert.Equal(t, 13, store.Load().SegmentCount)

	m = press(t, m, "down")
	press(t, m, "left")
	assert.InDelta(t, 0.31, store.Load().RotationSpeed, 1e-9)
}

func TestPanelToggleAndTap(t *testing.T) {
	store := controls.NewStore(controls.Default())
	tapper := &countingTapper{}
	m := tea.Model(NewPanel(store, nil, tapper))

	press(t, m, "a")
	assert.False(t, store.Load().AutoSpin)

	m = press(t, m, " ", " ")
	assert.Equal(t, 2, tapper.taps)
	assert.Contains(t, m.View(), "120.0 BPM")
}

func TestPanelQuit(t *testing.T) {
	m := NewPanel(controls.NewStore(controls.Default()), nil, nil)
	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPanelMetersFollowBands(t *testing.T) {
	bands := staticBands{Bass: 1, Mids: 0.5, Highs: 0.25, Flux: 0.6}
	m := tea.Model(NewPanel(controls.NewStore(controls.Default()), bands, nil))

	for range 120 {
		m, _ = m.Update(tickMsg(time.Now()))
	}
	p := m.(PanelModel)
	assert.InDelta(t, 1, p.meters[0].pos, 0.05)
	assert.InDelta(t, 0.5, p.meters[1].pos, 0.05)
	assert.InDelta(t, 0.25, p.meters[2].pos, 0.05)
}

func TestPanelViewListsFields(t *testing.T) {
	view := NewPanel(controls.NewStore(controls.Default()), nil, nil).View()
	for _, f := range controls.Fields() {
		assert.Contains(t, view, string(f))
	}
	assert.Contains(t, view, "tap space")
}

func TestBar(t *testing.T) {
	assert.Equal(t, strings.Repeat(" ", 4), bar(0, 4))
	assert.Equal(t, strings.Repeat("█", 4), bar(1, 4))
	assert.Equal(t, "██▌ ", bar(0.625, 4))
	assert.Equal(t, strings.Repeat("█", 4), bar(3, 4))
}

var testDevices = []audio.Device{
	{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "Mic", MaxInputChannels: 1, DefaultSampleRate: 48000},
	{ID: 2, Name: "Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 96000},
}

func loadedPicker(t *testing.T, fetch func() ([]audio.Device, error)) tea.Model {
	t.Helper()
	m := NewDeviceListModel(fetch)
	msg := m.Init()()
	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model, _ = model.Update(msg)
	return model
}

func TestPickerSkipsOutputOnlyDevices(t *testing.T) {
	m := loadedPicker(t, func() ([]audio.Device, error) { return testDevices, nil })
	view := m.View()
	assert.NotContains(t, view, "Speakers")
	assert.Contains(t, view, "Mic")
	assert.Contains(t, view, "Interface")
}

func TestPickerChoosesDeviceAndRate(t *testing.T) {
	m := loadedPicker(t, func() ([]audio.Device, error) { return testDevices, nil })

	m = press(t, m, "down", "enter")
	assert.Contains(t, m.View(), "Sample Rate")

	m, cmd := m.Update(keyMsg("up"))
	require.Nil(t, m.(DeviceListModel).chosen)
	m, cmd = m.Update(keyMsg("enter"))
	require.NotNil(t, cmd)

	sel, ok := m.(DeviceListModel).Selection()
	require.True(t, ok)
	assert.Equal(t, "Interface", sel.Device.Name)
	assert.Equal(t, 88200.0, sel.SampleRate)
}

func TestPickerEscapeReturnsToList(t *testing.T) {
	m := loadedPicker(t, func() ([]audio.Device, error) { return testDevices, nil })
	m = press(t, m, "enter", "esc")
	assert.Contains(t, m.View(), "Input Devices")
	_, ok := m.(DeviceListModel).Selection()
	assert.False(t, ok)
}

func TestPickerShowsFetchError(t *testing.T) {
	m := loadedPicker(t, func() ([]audio.Device, error) { return nil, errors.New("no portaudio") })
	assert.Contains(t, m.View(), "no portaudio")
}
