package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/talgya/crowd-sim/internal/stats"
)

// Binary writes the tagged binary stream read by the animator. Integers
// are big-endian, floats little-endian IEEE 754.
type Binary struct {
	w   *bufio.Writer
	err error
}

// NewBinary creates a binary sink writing to w. Close flushes but does
// not close w.
func NewBinary(w io.Writer) *Binary {
	return &Binary{w: bufio.NewWriter(w)}
}

// Init writes the scene file name, scale and density thresholds.
func (b *Binary) Init(h Header) error {
	b.str(h.SceneFile)
	b.f64(h.Scale)
	b.f64(h.DensityMin)
	b.f64(h.DensityMax)
	return b.fail("init")
}

// WriteFrame writes the time record, the density record when present,
// and the locations record.
func (b *Binary) WriteFrame(f *Frame) error {
	b.u8(TagCurrentTime)
	b.f64(f.Time)

	if f.HasDensity {
		b.u8(TagDensityMap)
		b.u32(uint32(len(f.Density)))
		for _, c := range f.Density {
			b.u16(c.X)
			b.u16(c.Y)
			b.f64(c.Value)
		}
	}

	b.u8(TagLocations)
	b.u32(uint32(len(f.People)))
	for _, p := range f.People {
		b.u16(gridCoord(p.X))
		b.u16(gridCoord(p.Y))
		b.f64(p.Heading)
		b.f64(p.Panic)
	}
	return b.fail("frame")
}

// WriteStatistics writes one statistics record per non-empty summary.
func (b *Binary) WriteStatistics(f Final) error {
	b.summary(f.Time, TagCompletionTime, f.CompletionTime)
	b.summary(f.Time, TagTravelTime, f.TravelTime)
	return b.fail("statistics")
}

// Close flushes buffered output.
func (b *Binary) Close() error {
	if b.err != nil {
		return b.err
	}
	if err := b.w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func (b *Binary) summary(now float64, tag uint8, s *stats.Summary) {
	if s == nil {
		return
	}
	b.f64(now)
	b.u8(tag)
	b.f64(s.Min)
	b.f64(s.Max)
	b.u32(s.Count)
	b.f64(s.Mean)
	b.f64(s.Variance)
	b.f64(s.StdDeviation)
}

func (b *Binary) fail(what string) error {
	if b.err != nil {
		return fmt.Errorf("write %s: %w", what, b.err)
	}
	return nil
}

func (b *Binary) write(p []byte) {
	if b.err != nil {
		return
	}
	_, b.err = b.w.Write(p)
}

func (b *Binary) u8(v uint8) { b.write([]byte{v}) }

func (b *Binary) u16(v uint16) { b.write(binary.BigEndian.AppendUint16(nil, v)) }

func (b *Binary) u32(v uint32) { b.write(binary.BigEndian.AppendUint32(nil, v)) }

func (b *Binary) f64(v float64) {
	b.write(binary.LittleEndian.AppendUint64(nil, math.Float64bits(v)))
}

func (b *Binary) str(s string) {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	b.u16(uint16(len(s)))
	b.write([]byte(s))
}

// gridCoord rounds a coordinate onto the u16 grid.
func gridCoord(v float64) uint16 {
	r := math.Round(v)
	if r < 0 || math.IsNaN(r) {
		return 0
	}
	if r > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(r)
}
