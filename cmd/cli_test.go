package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"kaleido/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaultsToRun(t *testing.T) {
	cfg, err := ParseArgs(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, CommandRun, cfg.Command)
	assert.Equal(t, config.DefaultWidth, cfg.Render.Width)
	assert.True(t, cfg.Transport.WSEnabled)
}

func TestParseArgsSubcommands(t *testing.T) {
	for _, command := range []string{CommandRun, CommandList, CommandVersion} {
		cfg, err := ParseArgs([]string{command})
		require.NoError(t, err, command)
		assert.Equal(t, command, cfg.Command)
	}
}

func TestParseArgsFlagsOverride(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"run", "--device", "3", "--width", "320", "--height", "200", "--refresh", "30",
		"--ws", "", "--udp", "127.0.0.1:7000", "--tui", "--loop", "-f", "song.wav", "-v",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Audio.InputDevice)
	assert.Equal(t, 320, cfg.Render.Width)
	assert.Equal(t, 200, cfg.Render.Height)
	assert.Equal(t, 30, cfg.Render.RefreshRate)
	assert.False(t, cfg.Transport.WSEnabled)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, "127.0.0.1:7000", cfg.Transport.UDPTargetAddress)
	assert.True(t, cfg.UI.TUI)
	assert.True(t, cfg.Audio.Loop)
	assert.Equal(t, "song.wav", cfg.Audio.File)
	assert.True(t, cfg.Debug)
}

func TestParseArgsFlagsBeatConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kaleido.yaml")
	require.NoError(t, os.WriteFile(path, []byte("render:\n  width: 640\n  height: 480\n"), 0o644))

	cfg, err := ParseArgs([]string{"--config", path, "--height", "360"})
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Render.Width)
	assert.Equal(t, 360, cfg.Render.Height)
}

func TestParseArgsRejectsInvalidFlags(t *testing.T) {
	_, err := ParseArgs([]string{"--refresh", "0"})
	assert.Error(t, err)

	_, err = ParseArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, err = ParseArgs([]string{"bogus"})
	assert.Error(t, err)
}

func TestParseArgsVersionFlag(t *testing.T) {
	cfg, err := ParseArgs([]string{"--version"})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
