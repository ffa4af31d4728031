package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kaleido/cmd"
	"kaleido/internal/audio"
	"kaleido/internal/config"
	applog "kaleido/internal/log"
	"kaleido/internal/tui"
	"kaleido/internal/visualizer"
	"kaleido/pkg/build"
)

// main is the entry point for the kaleidoscope renderer.
//
// 1. Startup: build information, arguments and configuration, logging,
// PortAudio, then one-off commands (list, version) return early.
//
// 2. Running: the App opens its transports and the audio source; the first
// audio callback starts the scheduler, which renders on every refresh edge.
//
// 3. Shutdown: on a signal, the end of a non-looping file or quitting the
// panel, the scheduler stops first, then audio, then the transports.
func main() {
	// ==================== STARTUP PHASE ====================

	buildErr := build.Initialize()

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if cfg == nil {
		return // --help or --version
	}

	closeLog := setupLogging(cfg)
	defer closeLog()
	if buildErr != nil {
		applog.Debugf("development build: %v", buildErr)
	}

	switch cfg.Command {
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
		return
	case cmd.CommandList:
		if err := listDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		applog.Errorf("%v", err)
		closeLog()
		os.Exit(1)
	}
}

// setupLogging applies the configured level. While the terminal panel owns
// the screen, log lines go to the log file instead.
func setupLogging(cfg *config.Config) func() {
	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		applog.Warnf("unknown log level %q, using %s", cfg.LogLevel, level)
	}
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)

	if !cfg.UI.TUI || cfg.LogFile == "" {
		return func() {}
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		applog.Warnf("cannot open log file %s: %v", cfg.LogFile, err)
		return func() {}
	}
	applog.SetOutput(f)
	return func() {
		applog.SetOutput(os.Stderr)
		f.Close()
	}
}

func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(os.Stdout)
}

// ==================== RUNNING PHASE ====================

func run(cfg *config.Config) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if cfg.UI.PickDevice && cfg.Audio.File == "" {
		sel, err := tui.PickDevice()
		if err != nil {
			return err
		}
		cfg.Audio.InputDevice = sel.Device.ID
		cfg.Audio.SampleRate = sel.SampleRate
		cfg.Audio.InputChannels = min(cfg.Audio.InputChannels, sel.Device.MaxInputChannels)
		applog.Infof("using %s at %.0f Hz", sel.Device, sel.SampleRate)
	}

	app, err := visualizer.NewApp(cfg)
	if err != nil {
		return err
	}
	if err := app.Start(); err != nil {
		_ = app.Shutdown()
		return err
	}
	if ws := app.WebSocket(); ws != nil && !cfg.UI.TUI {
		fmt.Printf("Open http://%s/ to watch. Ctrl+C to stop.\n", ws.Addr())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	if cfg.UI.TUI {
		program := tui.NewPanelProgram(tui.NewPanel(app.Store(), app.Pipeline(), app))
		exited := make(chan struct{})
		go func() {
			select {
			case <-sig:
			case <-app.Done():
			case <-exited:
				return
			}
			program.Quit()
		}()
		if _, err := program.Run(); err != nil {
			applog.Errorf("panel: %v", err)
		}
		close(exited)
	} else {
		select {
		case s := <-sig:
			applog.Infof("received %v, shutting down", s)
		case <-app.Done():
			applog.Infof("playback finished")
		}
	}

	// ==================== SHUTDOWN PHASE ====================

	return app.Shutdown()
}
