package visualizer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"kaleido/internal/analysis"
	"kaleido/internal/audio"
	"kaleido/internal/config"
	"kaleido/internal/controls"
	applog "kaleido/internal/log"
	"kaleido/internal/render"
	"kaleido/internal/scheduler"
	"kaleido/internal/tempo"
	"kaleido/internal/transport"
	"kaleido/internal/transport/udp"
)

var vlog = applog.New("visualizer")

// MaxCommandSegments is the largest segment count a viewer may set. The
// store itself has no upper bound; this keeps a remote client from asking
// for more petals than a frame can draw.
const MaxCommandSegments = 256

// App owns the renderer and its collaborators.
type App struct {
	cfg *config.Config

	store    *controls.Store
	analyser *analysis.Analyser
	renderer *render.Kaleidoscope
	pipeline *Pipeline
	tempo    *tempo.Estimator
	engine   *audio.Engine

	host      scheduler.RefreshHost
	vsync     *scheduler.VSyncHost // Nil when the host was injected.
	scheduler *scheduler.Scheduler

	ws         *transport.WebSocketTransport
	udpSender  *udp.UDPSender
	udpPub     *udp.UDPPublisher
	transports []transport.Transport

	recordingPath string
	closeOnce     sync.Once
}

// Option customizes an App.
type Option func(*appOptions)

type appOptions struct {
	host  scheduler.RefreshHost
	clock scheduler.Clock
}

// WithRefreshHost replaces the VSyncHost, typically with a ManualHost.
func WithRefreshHost(h scheduler.RefreshHost) Option {
	return func(o *appOptions) { o.host = h }
}

// WithClock replaces the scheduler's monotonic clock.
func WithClock(c scheduler.Clock) Option {
	return func(o *appOptions) { o.clock = c }
}

// ControlsFromConfig converts the configured initial values.
func ControlsFromConfig(cc config.ControlsConfig) controls.Controls {
	return controls.Controls{
		SegmentCount:       cc.SegmentCount,
		RotationSpeed:      cc.RotationSpeed,
		HueCenter:          cc.HueCenter,
		Distortion:         cc.Distortion,
		ColorWarp:          cc.ColorWarp,
		TrailAmount:        cc.TrailAmount,
		ResolutionExponent: cc.ResolutionExponent,
		Smoothing:          cc.Smoothing,
		EnergyBoost:        cc.EnergyBoost,
		AutoSpin:           cc.AutoSpin,
	}.Clamped()
}

// NewApp builds every component from cfg. Sockets are opened here; audio
// devices are not opened until Start.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	window, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		vlog.Warnf("%v, using %s", err, window)
	}

	initial := ControlsFromConfig(cfg.Controls)
	a := &App{cfg: cfg}
	a.store = controls.NewStore(initial)
	a.analyser = analysis.NewAnalyser(initial.ResolutionExponent, initial.Smoothing, analysis.Options{
		MinDecibels: cfg.Analysis.MinDecibels,
		MaxDecibels: cfg.Analysis.MaxDecibels,
		Window:      window,
		SampleRate:  cfg.Audio.SampleRate,
	})
	a.renderer = render.NewKaleidoscope(cfg.Render.Width, cfg.Render.Height)
	a.pipeline = NewPipeline(a.store, a.analyser, a.renderer)
	a.tempo = tempo.NewEstimator(a.store)
	a.tempo.ResetAfter = cfg.Tempo.ResetAfter
	a.engine = audio.NewEngine(cfg, a.analyser)

	if err := a.openTransports(); err != nil {
		a.closeTransports()
		return nil, err
	}

	a.host = o.host
	if a.host == nil {
		// Only the viewer consumes frames when neither the panel nor UDP
		// needs fresh band readings.
		var visible func() bool
		if cfg.Render.PauseWhenHidden && a.ws != nil && !cfg.UI.TUI && a.udpPub == nil {
			visible = a.ws.Visible
		}
		a.vsync = scheduler.NewVSyncHost(cfg.Render.RefreshRate, visible)
		a.host = a.vsync
	}
	var schedOpts []scheduler.Option
	if o.clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(o.clock))
	}
	a.scheduler = scheduler.New(a.host, a.pipeline.Tick, schedOpts...)
	a.engine.OnStart(a.scheduler.Start)

	return a, nil
}

func (a *App) openTransports() error {
	tc := a.cfg.Transport
	if tc.WSEnabled {
		a.ws = transport.NewWebSocketTransport(tc.WSAddress, tc.JPEGQuality, a)
		if err := a.ws.Start(); err != nil {
			return fmt.Errorf("failed to start websocket transport on %s: %w", tc.WSAddress, err)
		}
		a.addTransport(a.ws)
	} else {
		a.addTransport(transport.NewLoggingTransport(a.cfg.Render.RefreshRate))
	}

	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			return err
		}
		a.udpSender = sender
		pub, err := udp.NewUDPPublisher(tc.UDPSendInterval, sender, a.pipeline)
		if err != nil {
			return err
		}
		a.udpPub = pub
	}
	return nil
}

func (a *App) addTransport(t transport.Transport) {
	a.transports = append(a.transports, t)
	a.pipeline.AddTransport(t)
}

// Start opens the audio source. The scheduler starts once audio flows.
func (a *App) Start() error {
	if a.udpPub != nil {
		a.udpPub.Start()
	}
	if err := a.engine.Start(); err != nil {
		return fmt.Errorf("failed to start audio: %w", err)
	}

	if a.cfg.Recording.Enabled {
		path, err := audio.RecordingPath(a.cfg.Recording, time.Now())
		if err != nil {
			return err
		}
		if err := a.engine.StartRecording(path); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		a.recordingPath = path
		vlog.Infof("recording to %s", path)
	}
	return nil
}

// StartRendering starts the scheduler without audio. Frames are rendered
// from silence until samples arrive.
func (a *App) StartRendering() {
	a.scheduler.Start()
}

// Shutdown stops the scheduler, then audio, then the transports.
func (a *App) Shutdown() error {
	var errs []error
	a.closeOnce.Do(func() {
		a.scheduler.Stop()
		if a.vsync != nil {
			a.vsync.Close()
		}
		if err := a.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("audio: %w", err))
		}
		if a.recordingPath != "" {
			vlog.Infof("recording saved to %s", a.recordingPath)
		}
		errs = append(errs, a.closeTransports())
		vlog.Infof("rendered %d frames", a.scheduler.Frames())
	})
	return errors.Join(errs...)
}

func (a *App) closeTransports() error {
	var errs []error
	if a.udpPub != nil {
		errs = append(errs, a.udpPub.Close())
	}
	if a.udpSender != nil {
		errs = append(errs, a.udpSender.Close())
	}
	for _, t := range a.transports {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

// Tap records a tempo tap now and announces the estimate.
func (a *App) Tap() (tempo.Estimate, bool) {
	est, ok := a.tempo.RecordNow()
	if ok {
		a.pipeline.broadcast(transport.Message{Type: transport.MessageTempo, Data: est})
	}
	return est, ok
}

// HandleCommand applies a viewer command. Control changes reach viewers
// through the next frame's state message, so they produce no reply.
func (a *App) HandleCommand(cmd transport.Command) (any, error) {
	switch cmd.Type {
	case transport.CommandSet:
		f, err := controls.ParseField(cmd.Field)
		if err != nil {
			return nil, err
		}
		if cmd.Value == nil {
			return nil, fmt.Errorf("set %s: missing value", f)
		}
		if f == controls.FieldSegments && *cmd.Value > MaxCommandSegments {
			return nil, fmt.Errorf("set %s: %v exceeds %d", f, *cmd.Value, MaxCommandSegments)
		}
		_, err = a.store.Set(f, *cmd.Value)
		return nil, err

	case transport.CommandToggle:
		f, err := controls.ParseField(cmd.Field)
		if err != nil {
			return nil, err
		}
		if f != controls.FieldAutoSpin {
			return nil, fmt.Errorf("%s cannot be toggled", f)
		}
		_, err = a.store.Step(f, 1)
		return nil, err

	case transport.CommandTap:
		if est, ok := a.tempo.RecordNow(); ok {
			return transport.Message{Type: transport.MessageTempo, Data: est}, nil
		}
		return nil, nil

	case transport.CommandResize:
		if cmd.Width < 0 || cmd.Height < 0 {
			return nil, fmt.Errorf("invalid size %dx%d", cmd.Width, cmd.Height)
		}
		w, h := min(cmd.Width, render.MaxSurfaceSize), min(cmd.Height, render.MaxSurfaceSize)
		if w != cmd.Width || h != cmd.Height {
			vlog.Warnf("resize %dx%d clamped to %dx%d", cmd.Width, cmd.Height, w, h)
		}
		a.renderer.Resize(w, h)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd.Type)
}

// State returns the current controls for a newly connected viewer.
func (a *App) State() any {
	return ControlsState(a.store.Load())
}

// Store returns the control store.
func (a *App) Store() *controls.Store { return a.store }

// Tempo returns the tap tempo estimator.
func (a *App) Tempo() *tempo.Estimator { return a.tempo }

// Pipeline returns the frame pipeline.
func (a *App) Pipeline() *Pipeline { return a.pipeline }

// Scheduler returns the animation scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Renderer returns the kaleidoscope renderer.
func (a *App) Renderer() *render.Kaleidoscope { return a.renderer }

// Analyser returns the spectral frame source, which is also the audio sink.
func (a *App) Analyser() *analysis.Analyser { return a.analyser }

// WebSocket returns the WebSocket transport, or nil when disabled.
func (a *App) WebSocket() *transport.WebSocketTransport { return a.ws }

// Done is closed when a non-looping file finishes.
func (a *App) Done() <-chan struct{} { return a.engine.Done() }

var _ transport.CommandHandler = (*App)(nil)
