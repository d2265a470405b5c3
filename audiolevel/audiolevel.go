// Package audiolevel measures the loudness of an audio stream one window at a
// time, producing a smoothed level in [0,1] suitable to drive animation.
package audiolevel

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

const (
	// DefaultAttack is the fraction of a rise in loudness followed per window.
	DefaultAttack = 0.6
	// DefaultRelease is the fraction of a drop in loudness followed per window.
	DefaultRelease = 0.12
	// DefaultGain maps the RMS of a full scale sine to a level of 1.
	DefaultGain = math.Sqrt2
)

var errBadWindow = errors.New("meter window must hold at least one sample")

// Meter reads an audio stream in fixed windows and tracks its smoothed RMS level.
// A Meter is not safe for concurrent use.
type Meter struct {
	// Attack and Release in (0,1] set how fast the level follows rising and falling loudness.
	Attack  float64
	Release float64
	// Gain scales the window RMS before clamping to [0,1].
	Gain float64

	src    beep.Streamer
	closer io.Closer
	buf    [][2]float64
	level  float64
	done   bool
}

// NewMeter returns a meter reading window long chunks of s sampled at rate.
func NewMeter(s beep.Streamer, rate beep.SampleRate, window time.Duration) (*Meter, error) {
	n := rate.N(window)
	if n <= 0 {
		return nil, errBadWindow
	}
	return &Meter{
		Attack:  DefaultAttack,
		Release: DefaultRelease,
		Gain:    DefaultGain,
		src:     s,
		buf:     make([][2]float64, n),
	}, nil
}

// NewMeterFromWAV decodes a WAV stream from r and meters it. Closing the
// meter closes the decoder, and r if it is an io.ReadCloser.
func NewMeterFromWAV(r io.Reader, window time.Duration) (*Meter, beep.Format, error) {
	s, format, err := wav.Decode(r)
	if err != nil {
		return nil, format, fmt.Errorf("decoding WAV: %w", err)
	}
	m, err := NewMeter(s, format.SampleRate, window)
	if err != nil {
		s.Close()
		return nil, format, err
	}
	if format.Precision == 2 || format.Precision == 3 {
		// The decoder maps 16 and 24 bit samples to [-0.5, 0.5].
		m.Gain *= 2
	}
	m.closer = s
	return m, format, nil
}

// Next consumes one window of the stream and returns the updated level.
// Once the stream is exhausted the level decays toward zero at the release rate.
func (m *Meter) Next() float32 {
	var rms float64
	if !m.done {
		n, ok := m.src.Stream(m.buf)
		if !ok {
			m.done = true
		}
		if n > 0 {
			var sum float64
			for _, frame := range m.buf[:n] {
				sum += frame[0]*frame[0] + frame[1]*frame[1]
			}
			// Short reads are averaged over the full window.
			rms = math.Sqrt(sum / float64(2*len(m.buf)))
		}
	}
	target := min(1, max(0, rms*m.Gain))
	coef := m.Release
	if target > m.level {
		coef = m.Attack
	}
	m.level += (target - m.level) * min(1, max(0, coef))
	return float32(m.level)
}

// Level returns the level computed by the last call to Next.
func (m *Meter) Level() float32 { return float32(m.level) }

// Done reports whether the underlying stream is exhausted.
func (m *Meter) Done() bool { return m.done }

// Err returns the error of the underlying stream, if any.
func (m *Meter) Err() error { return m.src.Err() }

// Close releases the decoder when the meter was created by [NewMeterFromWAV].
func (m *Meter) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}
