package audiolevel

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

func constant(v float64) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{v, -v}
		}
		return len(samples), true
	})
}

func sine(freq float64, rate beep.SampleRate) beep.Streamer {
	var k int
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := math.Sin(2 * math.Pi * freq * float64(k) / float64(rate))
			samples[i] = [2]float64{v, v}
			k++
		}
		return len(samples), true
	})
}

func scaled(a float64, s beep.Streamer) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n, ok := s.Stream(samples)
		for i := range samples[:n] {
			samples[i][0] *= a
			samples[i][1] *= a
		}
		return n, ok
	})
}

func TestMeterSilence(t *testing.T) {
	m, err := NewMeter(beep.Silence(-1), 44100, time.Second/60)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 30; i++ {
		if lvl := m.Next(); lvl != 0 {
			t.Fatalf("silence produced level %g", lvl)
		}
	}
}

func TestMeterFullScaleSine(t *testing.T) {
	const rate = beep.SampleRate(48000)
	m, err := NewMeter(sine(480, rate), rate, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	var lvl float32
	for i := 0; i < 40; i++ {
		lvl = m.Next()
		if lvl < 0 || lvl > 1 {
			t.Fatalf("level out of range: %g", lvl)
		}
	}
	if math.Abs(float64(lvl)-1) > 1e-3 {
		t.Errorf("full scale sine should meter near 1, got %g", lvl)
	}
}

func TestMeterAttackRelease(t *testing.T) {
	loud := beep.Take(44100/60*5, constant(0.5))
	m, err := NewMeter(beep.Seq(loud, beep.Silence(-1)), 44100, time.Second/60)
	if err != nil {
		t.Fatal(err)
	}
	first := m.Next()
	want := float32(0.5 * DefaultGain * DefaultAttack)
	if math.Abs(float64(first-want)) > 1e-4 {
		t.Errorf("first window: got %g, want %g", first, want)
	}
	for i := 0; i < 4; i++ {
		m.Next()
	}
	peak := m.Level()
	afterDrop := m.Next()
	if afterDrop >= peak {
		t.Fatalf("level did not fall on silence: %g -> %g", peak, afterDrop)
	}
	if peak-afterDrop > peak*DefaultRelease+1e-5 {
		t.Errorf("release faster than configured: %g -> %g", peak, afterDrop)
	}
}

func TestMeterEndOfStream(t *testing.T) {
	m, err := NewMeter(beep.Take(100, constant(1)), 1000, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	lvl := m.Next()
	if lvl <= 0 || m.Done() {
		t.Fatalf("expected level after first window, got %g done=%v", lvl, m.Done())
	}
	m.Next()
	if !m.Done() {
		t.Fatal("expected stream exhausted")
	}
	prev := m.Level()
	for i := 0; i < 50; i++ {
		if lvl = m.Next(); lvl > prev {
			t.Fatal("level rose after end of stream")
		}
		prev = lvl
	}
	if prev > 0.01 {
		t.Errorf("level did not decay: %g", prev)
	}
	if m.Err() != nil {
		t.Error(m.Err())
	}
}

func TestMeterBadWindow(t *testing.T) {
	if _, err := NewMeter(constant(0), 44100, 0); err == nil {
		t.Error("expected error for empty window")
	}
}

func TestMeterFromWAV(t *testing.T) {
	const rate = beep.SampleRate(8000)
	path := filepath.Join(t.TempDir(), "tone.wav")
	fp, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	err = wav.Encode(fp, beep.Take(int(rate), sine(200, rate)), format)
	fp.Close()
	if err != nil {
		t.Fatal(err)
	}
	fp, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	m, gotFormat, err := NewMeterFromWAV(fp, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if gotFormat.SampleRate != rate || gotFormat.NumChannels != 2 {
		t.Errorf("unexpected format %+v", gotFormat)
	}
	var lvl float32
	for i := 0; i < 10; i++ {
		lvl = m.Next()
	}
	if lvl < 0.9 {
		t.Errorf("decoded sine metered low: %g", lvl)
	}
	if _, _, err = NewMeterFromWAV(strings.NewReader("RIFF but not a wave"), time.Second); err == nil {
		t.Error("expected decode error for malformed input")
	}
}

func TestMeterFromWAVPrecision(t *testing.T) {
	const rate = beep.SampleRate(8000)
	for _, precision := range []int{1, 2, 3} {
		for _, amplitude := range []float64{1, 0.5} {
			var buf bytes.Buffer
			ws := &writeSeeker{buf: &buf}
			format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: precision}
			err := wav.Encode(ws, beep.Take(int(rate)/2, scaled(amplitude, sine(200, rate))), format)
			if err != nil {
				t.Fatal(err)
			}
			m, _, err := NewMeterFromWAV(bytes.NewReader(buf.Bytes()), 50*time.Millisecond)
			if err != nil {
				t.Fatal(err)
			}
			var lvl float32
			for i := 0; i < 8; i++ {
				lvl = m.Next()
			}
			m.Close()
			if math.Abs(float64(lvl)-amplitude) > 0.03 {
				t.Errorf("%d byte samples, amplitude %g: metered %g", precision, amplitude, lvl)
			}
		}
	}
}

// writeSeeker is an in-memory io.WriteSeeker for encoding WAV headers.
type writeSeeker struct {
	buf *bytes.Buffer
	off int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	b := w.buf.Bytes()
	if w.off < len(b) {
		n := copy(b[w.off:], p)
		w.off += n
		p = p[n:]
		if len(p) == 0 {
			return n, nil
		}
		m, err := w.buf.Write(p)
		w.off += m
		return n + m, err
	}
	n, err := w.buf.Write(p)
	w.off += n
	return n, err
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		w.off = int(offset)
	case io.SeekCurrent:
		w.off += int(offset)
	case io.SeekEnd:
		w.off = w.buf.Len() + int(offset)
	}
	if w.off < 0 || w.off > w.buf.Len() {
		return 0, errors.New("seek out of range")
	}
	return int64(w.off), nil
}
