/*
Package visualizer connects the core packages into a running renderer.

The Pipeline is the per-frame glue called by the scheduler. The App owns
every collaborator (audio engine, transports, refresh host) and their
lifecycle.
*/
package visualizer

import (
	"image"
	"sync"

	"kaleido/internal/analysis"
	"kaleido/internal/controls"
	"kaleido/internal/render"
	"kaleido/internal/transport"
)

// DefaultBandsEvery sends a bands message on every second frame.
const DefaultBandsEvery = 2

// BandsData is the payload of a bands message.
type BandsData struct {
	Time  float64               `json:"t"`
	Bands analysis.BandEnergies `json:"bands"`
}

// Pipeline runs one frame per Tick: snapshot the controls, configure and
// poll the frame source, extract bands, render, then publish.
type Pipeline struct {
	store    *controls.Store
	source   analysis.FrameSource
	renderer *render.Kaleidoscope

	transports []transport.Transport
	sinks      []transport.FrameSink
	bandsEvery uint64

	// Render goroutine state.
	configured  bool
	resolution  int
	smoothing   float64
	lastVersion uint64
	frames      uint64

	// Latest reading for readers off the render goroutine.
	mu     sync.RWMutex
	latest analysis.BandEnergies
	bins   []uint8
}

// NewPipeline returns a pipeline that publishes to no one until transports
// are added.
func NewPipeline(store *controls.Store, source analysis.FrameSource, renderer *render.Kaleidoscope) *Pipeline {
	return &Pipeline{
		store:      store,
		source:     source,
		renderer:   renderer,
		bandsEvery: DefaultBandsEvery,
	}
}

// AddTransport registers t for bands and state messages. Transports that
// are also frame sinks receive rendered frames. Not safe once ticking.
func (p *Pipeline) AddTransport(t transport.Transport) {
	p.transports = append(p.transports, t)
	if sink, ok := t.(transport.FrameSink); ok {
		p.sinks = append(p.sinks, sink)
	}
}

// SetBandsEvery sends a bands message once every n frames (at least 1).
func (p *Pipeline) SetBandsEvery(n int) {
	p.bandsEvery = uint64(max(1, n))
}

// Tick renders the frame for time t (seconds).
func (p *Pipeline) Tick(t float64) {
	// Version first: a write landing after it is picked up next tick.
	version := p.store.Version()
	c := p.store.Load()
	if !p.configured || c.ResolutionExponent != p.resolution || c.Smoothing != p.smoothing {
		p.source.Configure(c.ResolutionExponent, c.Smoothing)
		p.configured = true
		p.resolution, p.smoothing = c.ResolutionExponent, c.Smoothing
	}

	frame := p.source.Poll()
	bands := analysis.Extract(frame)
	drawn := p.renderer.Render(t, bands, c)

	p.mu.Lock()
	p.latest = bands
	p.bins = append(p.bins[:0], frame...)
	p.mu.Unlock()

	p.frames++
	if version != p.lastVersion {
		p.lastVersion = version
		p.broadcast(transport.Message{Type: transport.MessageState, Data: ControlsState(c)})
	}
	if (p.frames-1)%p.bandsEvery == 0 {
		p.broadcast(transport.Message{Type: transport.MessageBands, Data: BandsData{Time: t, Bands: bands}})
	}
	if drawn {
		p.sendFrame()
	}
}

func (p *Pipeline) broadcast(msg transport.Message) {
	for _, t := range p.transports {
		if err := t.Send(msg); err != nil {
			vlog.Debugf("%s message dropped: %v", msg.Type, err)
		}
	}
}

// sendFrame copies the surface once and hands the copy to every sink that
// wants it. Sinks must treat the image as read-only.
func (p *Pipeline) sendFrame() {
	var snap *image.RGBA
	for _, sink := range p.sinks {
		if !sink.WantsFrame() {
			continue
		}
		if snap == nil {
			snap = p.renderer.Surface().Snapshot(nil)
		}
		if err := sink.SendFrame(snap); err != nil {
			vlog.Debugf("frame dropped: %v", err)
		}
	}
}

// Frames returns the number of ticks run.
func (p *Pipeline) Frames() uint64 {
	return p.frames
}

// Latest returns the band reading of the most recent frame.
func (p *Pipeline) Latest() analysis.BandEnergies {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// LatestInto appends the most recent byte spectrum to dst[:0] and returns it
// with its band reading.
func (p *Pipeline) LatestInto(dst []uint8) (analysis.BandEnergies, []uint8) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, append(dst[:0], p.bins...)
}

// ControlsState renders c as the field-keyed map sent to viewers.
func ControlsState(c controls.Controls) map[string]any {
	out := make(map[string]any, len(controls.Fields()))
	for _, f := range controls.Fields() {
		v, _ := c.Get(f)
		switch f {
		case controls.FieldAutoSpin:
			out[string(f)] = c.AutoSpin
		case controls.FieldSegments, controls.FieldResolution:
			out[string(f)] = int(v)
		default:
			out[string(f)] = v
		}
	}
	return out
}
