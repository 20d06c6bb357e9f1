package output

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/talgya/crowd-sim/internal/stats"
)

func readF64(t *testing.T, r *bytes.Reader) float64 {
	t.Helper()
	var bits uint64
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		t.Fatalf("read f64: %v", err)
	}
	return math.Float64frombits(bits)
}

func readBE[T uint8 | uint16 | uint32](t *testing.T, r *bytes.Reader) T {
	t.Helper()
	var v T
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		t.Fatalf("read int: %v", err)
	}
	return v
}

func TestBinaryInit(t *testing.T) {
	var buf bytes.Buffer
	b := NewBinary(&buf)
	if err := b.Init(Header{SceneFile: "corridor.png", Scale: 0.05, DensityMin: 4, DensityMax: 10}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	r := bytes.NewReader(buf.Bytes())
	if n := readBE[uint16](t, r); n != 12 {
		t.Fatalf("name length = %d, want 12", n)
	}
	name := make([]byte, 12)
	r.Read(name)
	if string(name) != "corridor.png" {
		t.Errorf("name = %q", name)
	}
	for _, want := range []float64{0.05, 4, 10} {
		if got := readF64(t, r); got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if r.Len() != 0 {
		t.Errorf("%d trailing bytes", r.Len())
	}
}

func TestBinaryFrame(t *testing.T) {
	var buf bytes.Buffer
	b := NewBinary(&buf)
	frame := &Frame{
		Time:       1.5,
		HasDensity: true,
		Density:    []DensityCell{{X: 3, Y: 4, Value: 5.5}},
		People: []PersonState{
			{X: 10.6, Y: -2, Heading: 1.25, Panic: 0.5},
			{X: 1e6, Y: 7.4, Heading: 0, Panic: 1},
		},
	}
	if err := b.WriteFrame(frame); err != nil {
		t.Fatal(err)
	}
	b.Close()

	r := bytes.NewReader(buf.Bytes())
	if tag := readBE[uint8](t, r); tag != TagCurrentTime {
		t.Fatalf("tag = %d, want time", tag)
	}
	if v := readF64(t, r); v != 1.5 {
		t.Errorf("time = %v", v)
	}
	if tag := readBE[uint8](t, r); tag != TagDensityMap {
		t.Fatalf("tag = %d, want density", tag)
	}
	if n := readBE[uint32](t, r); n != 1 {
		t.Fatalf("density cells = %d", n)
	}
	if x, y := readBE[uint16](t, r), readBE[uint16](t, r); x != 3 || y != 4 {
		t.Errorf("cell = (%d, %d)", x, y)
	}
	if v := readF64(t, r); v != 5.5 {
		t.Errorf("cell value = %v", v)
	}
	if tag := readBE[uint8](t, r); tag != TagLocations {
		t.Fatalf("tag = %d, want locations", tag)
	}
	if n := readBE[uint32](t, r); n != 2 {
		t.Fatalf("people = %d", n)
	}
	wantXY := [][2]uint16{{11, 0}, {math.MaxUint16, 7}}
	wantHP := [][2]float64{{1.25, 0.5}, {0, 1}}
	for i := range wantXY {
		x, y := readBE[uint16](t, r), readBE[uint16](t, r)
		if x != wantXY[i][0] || y != wantXY[i][1] {
			t.Errorf("person %d at (%d, %d), want %v", i, x, y, wantXY[i])
		}
		h, p := readF64(t, r), readF64(t, r)
		if h != wantHP[i][0] || p != wantHP[i][1] {
			t.Errorf("person %d heading/panic = %v/%v", i, h, p)
		}
	}
	if r.Len() != 0 {
		t.Errorf("%d trailing bytes", r.Len())
	}
}

func TestBinaryStatisticsSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	b := NewBinary(&buf)
	b.WriteStatistics(Final{Time: 9})
	b.Close()
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes for empty statistics", buf.Len())
	}

	s := &stats.Summary{Min: 1, Max: 3, Count: 3, Mean: 2, Variance: 0.5, StdDeviation: 0.7}
	b = NewBinary(&buf)
	b.WriteStatistics(Final{Time: 9, CompletionTime: s})
	b.Close()

	r := bytes.NewReader(buf.Bytes())
	if v := readF64(t, r); v != 9 {
		t.Errorf("time = %v", v)
	}
	if tag := readBE[uint8](t, r); tag != TagCompletionTime {
		t.Errorf("tag = %d", tag)
	}
	readF64(t, r)
	readF64(t, r)
	if n := readBE[uint32](t, r); n != 3 {
		t.Errorf("count = %d", n)
	}
	if r.Len() != 3*8 {
		t.Errorf("remaining = %d, want mean/variance/std", r.Len())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestBinaryReportsWriteErrors(t *testing.T) {
	b := NewBinary(failingWriter{})
	b.WriteFrame(&Frame{People: make([]PersonState, 1000)})
	if err := b.Close(); err == nil {
		t.Fatal("expected an error")
	}
}

type recordingSink struct {
	frames int
	fail   bool
	closed bool
}

func (r *recordingSink) Init(Header) error { return nil }

func (r *recordingSink) WriteFrame(*Frame) error {
	if r.fail {
		return errors.New("gone")
	}
	r.frames++
	return nil
}

func (r *recordingSink) WriteStatistics(Final) error { return nil }

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func TestMultiDropsFailingSecondary(t *testing.T) {
	primary, good, bad := &recordingSink{}, &recordingSink{}, &recordingSink{fail: true}
	m := NewMulti(primary)
	m.Add("good", good)
	m.Add("bad", bad)

	for i := 0; i < 3; i++ {
		if err := m.WriteFrame(&Frame{}); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if m.Len() != 1 {
		t.Errorf("secondary sinks = %d, want 1", m.Len())
	}
	if !bad.closed {
		t.Error("dropped sink should be closed")
	}
	if primary.frames != 3 || good.frames != 3 {
		t.Errorf("frames primary=%d good=%d, want 3", primary.frames, good.frames)
	}

	m.Close()
	if !primary.closed || !good.closed {
		t.Error("Close should close all sinks")
	}
}

func TestMultiReturnsPrimaryError(t *testing.T) {
	m := NewMulti(&recordingSink{fail: true})
	if err := m.WriteFrame(&Frame{}); err == nil {
		t.Fatal("expected primary error")
	}
}
