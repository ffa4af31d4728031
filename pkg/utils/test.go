// Package utils holds signal and transport fixtures shared by package tests.
package utils

import (
	"math"
	"sync"
)

// MockTransport records every payload passed to Send.
type MockTransport struct {
	mu       sync.Mutex
	Messages []any
	Closed   bool
}

// Send stores the payload for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Last returns the most recent payload, or nil.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return nil
	}
	return m.Messages[len(m.Messages)-1]
}

// Len returns the number of payloads received so far.
func (m *MockTransport) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// GenerateComplexWave returns a 440Hz fundamental with two harmonics scaled to
// 90% of the int32 range.
func GenerateComplexWave(size int, sampleRate float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int32(signal * math.MaxInt32 * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a single sine at frequency Hz scaled to 90% of the
// int32 range.
func GenerateSineWave(size int, sampleRate, frequency float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int32(math.Sin(2*math.Pi*frequency*t) * math.MaxInt32 * 0.9)
	}
	return buffer
}

// ConstantFrame returns a byte spectrum of length n filled with v.
func ConstantFrame(n int, v uint8) []uint8 {
	frame := make([]uint8, n)
	for i := range frame {
		frame[i] = v
	}
	return frame
}

// FindPeakBin returns the index of the loudest bin in [startBin, endBin].
func FindPeakBin(frame []uint8, startBin, endBin int) int {
	if len(frame) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(frame) {
		endBin = len(frame) - 1
	}

	peakBin := startBin
	peakValue := frame[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if frame[bin] > peakValue {
			peakValue = frame[bin]
			peakBin = bin
		}
	}
	return peakBin
}
