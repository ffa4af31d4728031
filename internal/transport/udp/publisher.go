// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"kaleido/internal/analysis"
)

// Source provides the most recent analysis result. LatestInto appends the
// current frame to dst[:0] and returns it with the band energies.
type Source interface {
	LatestInto(dst []uint8) (analysis.BandEnergies, []uint8)
}

// Sender transmits one packet.
type Sender interface {
	Send(data []byte) error
}

// UDPPublisher periodically packs the latest band energies and spectrum into
// a binary packet and sends it. It runs in its own goroutine between Start
// and Stop.
type UDPPublisher struct {
	sender   Sender
	source   Source
	interval time.Duration
	now      func() time.Time

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	// Reused between packets.
	bins   []uint8
	packet []byte
}

// NewUDPPublisher creates a publisher. If interval is not positive it
// defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender Sender, source Source) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: source cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		ulog.Warnf("invalid publish interval, defaulting to %s", interval)
	}

	return &UDPPublisher{
		sender:   sender,
		source:   source,
		interval: interval,
		now:      time.Now,
		bins:     make([]uint8, 0, 1<<(analysis.MaxResolutionExponent-1)),
		packet:   make([]byte, 0, HeaderSize+1<<(analysis.MaxResolutionExponent-1)),
	}, nil
}

// Start begins the periodic publishing. Calling it while running is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		ulog.Warnf("publisher already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ulog.Infof("publisher started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to exit and waits for it. Calling it
// when not running is a no-op.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	ulog.Infof("publisher stopped after %d packets", p.sequenceNum)
	return nil
}

/*
Packet layout, big endian:

	| seq uint32 | ts int64 | bass f32 | mids f32 | highs f32 | flux f32 | n uint16 | bins [n]uint8 |

ts is nanoseconds since the Unix epoch. Bins are the byte spectrum exactly
as the renderer saw it, truncated to 65535 values.
*/

// HeaderSize is the number of bytes before the bins.
const HeaderSize = 4 + 8 + 4*4 + 2

// Packet is a decoded datagram.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	Bands     analysis.BandEnergies
	Bins      []uint8
}

// AppendPacket encodes one datagram onto dst.
func AppendPacket(dst []byte, seq uint32, ts time.Time, b analysis.BandEnergies, bins []uint8) []byte {
	n := min(len(bins), math.MaxUint16)
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts.UnixNano()))
	for _, v := range [4]float64{b.Bass, b.Mids, b.Highs, b.Flux} {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	return append(dst, bins[:n]...)
}

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

// DecodePacket parses a datagram produced by AppendPacket. The returned
// bins alias data.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	be := binary.BigEndian
	f := func(off int) float64 {
		return float64(math.Float32frombits(be.Uint32(data[off:])))
	}
	n := int(be.Uint16(data[28:]))
	if len(data) < HeaderSize+n {
		return Packet{}, ErrShortPacket
	}
	return Packet{
		Sequence:  be.Uint32(data),
		Timestamp: time.Unix(0, int64(be.Uint64(data[4:]))),
		Bands: analysis.BandEnergies{
			Bass:  f(12),
			Mids:  f(16),
			Highs: f(20),
			Flux:  f(24),
		},
		Bins: data[HeaderSize : HeaderSize+n],
	}, nil
}

// buildAndSendPacket fetches the latest analysis, encodes and sends it.
func (p *UDPPublisher) buildAndSendPacket() {
	var bands analysis.BandEnergies
	bands, p.bins = p.source.LatestInto(p.bins[:0])

	p.sequenceNum++
	p.packet = AppendPacket(p.packet[:0], p.sequenceNum, p.now(), bands, p.bins)

	if err := p.sender.Send(p.packet); err == nil {
		ulog.Debugf("sent packet %d (%d bytes)", p.sequenceNum, len(p.packet))
	}
}

// Close implements io.Closer by stopping the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
