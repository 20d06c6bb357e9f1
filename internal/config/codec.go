package config

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/talgya/crowd-sim/internal/dist"
)

// Section codes of the configuration stream.
const (
	SectionScene      uint8 = 0x01
	SectionTime       uint8 = 0x02
	SectionSpawn      uint8 = 0x03
	SectionForces     uint8 = 0x04
	SectionFOV        uint8 = 0x05
	SectionDensityMap uint8 = 0x06
	SectionSimulation uint8 = 0x07
	SectionPanic      uint8 = 0x08
)

// Element codes, scoped by section.
const (
	elemWall        uint16 = 0x0001
	elemSpawnArea   uint16 = 0x0002
	elemTargetArea  uint16 = 0x0003
	elemPanicSource uint16 = 0x0004
	elemWidth       uint16 = 0x0011
	elemHeight      uint16 = 0x0012
	elemScale       uint16 = 0x0013
	elemFileName    uint16 = 0x00FF

	elemEndTime uint16 = 0x0001
	elemTick    uint16 = 0x0002

	elemSpawnRate     uint16 = 0x0001
	elemSpawnTime     uint16 = 0x0002
	elemInitialPeople uint16 = 0x0003

	elemRepulsionCoeff uint16 = 0x0101
	elemTargetSpeed    uint16 = 0x0201
	elemHerding        uint16 = 0x0301
	elemFollowHerd     uint16 = 0x0401

	elemFOVForward  uint16 = 0x0001
	elemFOVBackward uint16 = 0x0002

	elemDMEnabled uint16 = 0x0001
	elemDMMin     uint16 = 0x0002
	elemDMMax     uint16 = 0x0003

	elemMode uint16 = 0x0001

	elemKInitial     uint16 = 0x0001
	elemKSpread      uint16 = 0x0002
	elemKDecay       uint16 = 0x0003
	elemInitialPanic uint16 = 0x0004
)

// InfiniteEndTime is the wire value of an unbounded run.
const InfiniteEndTime uint32 = 0xFFFFFFFF

// Multi-byte integers are big-endian, floats are little-endian IEEE 754.
var (
	intOrder   = binary.BigEndian
	floatOrder = binary.LittleEndian
)

// UnknownError reports a section or element code the decoder does not know.
type UnknownError struct {
	Section uint8
	Element uint16
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown config element %#04x in section %#02x", e.Element, e.Section)
}

type decoder struct {
	r   *bufio.Reader
	buf [8]byte
	err error
}

func (d *decoder) read(n int) []byte {
	if d.err != nil {
		return d.buf[:n]
	}
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.err = err
	}
	return d.buf[:n]
}

func (d *decoder) u8() uint8    { return d.read(1)[0] }
func (d *decoder) u16() uint16  { return intOrder.Uint16(d.read(2)) }
func (d *decoder) u32() uint32  { return intOrder.Uint32(d.read(4)) }
func (d *decoder) f64() float64 { return math.Float64frombits(floatOrder.Uint64(d.read(8))) }

func (d *decoder) rect() (x0, y0, x1, y1 uint16) {
	return d.u16(), d.u16(), d.u16(), d.u16()
}

func (d *decoder) distribution() dist.Value {
	kind := dist.Kind(d.u8())
	v := dist.Value{Kind: kind, A: d.f64(), B: d.f64()}
	if d.err == nil && !v.Valid() {
		d.err = fmt.Errorf("unknown distribution type %d", uint8(kind))
	}
	return v
}

func (d *decoder) str() string {
	n := d.u16()
	if d.err != nil {
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = io.ErrUnexpectedEOF
		return ""
	}
	return string(b)
}

// Decode reads a configuration stream until EOF, starting from Default().
// The result is validated before it is returned.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	d := &decoder{r: bufio.NewReader(r)}

	items := 0
	for {
		section, err := d.r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cfg, fmt.Errorf("read section: %w", err)
		}
		element := d.u16()
		if err := d.item(&cfg, section, element); err != nil {
			return cfg, err
		}
		if d.err != nil {
			return cfg, fmt.Errorf("read element %#02x/%#04x: %w", section, element, d.err)
		}
		items++
	}
	slog.Debug("config read", "items", items, "walls", len(cfg.Scene.Walls),
		"spawn_areas", len(cfg.Scene.SpawnAreas), "target_areas", len(cfg.Scene.TargetAreas))

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (d *decoder) item(cfg *Config, section uint8, element uint16) error {
	unknown := &UnknownError{Section: section, Element: element}
	switch section {
	case SectionScene:
		s := &cfg.Scene
		switch element {
		case elemWall:
			x0, y0, x1, y1 := d.rect()
			s.Walls = append(s.Walls, Wall{X0: x0, Y0: y0, X1: x1, Y1: y1})
		case elemSpawnArea:
			x0, y0, x1, y1 := d.rect()
			s.SpawnAreas = append(s.SpawnAreas, SpawnArea{X0: x0, Y0: y0, X1: x1, Y1: y1, ID: d.u8()})
		case elemTargetArea:
			x0, y0, x1, y1 := d.rect()
			id := d.u8()
			seqLast := d.u8()
			s.TargetAreas = append(s.TargetAreas, TargetArea{
				X0: x0, Y0: y0, X1: x1, Y1: y1,
				ID:         id,
				SequenceNo: seqLast >> 1,
				Last:       seqLast&0x01 == 0x01,
			})
		case elemPanicSource:
			x, y, r := d.u16(), d.u16(), d.u16()
			power := float64(d.u8()) / 100
			s.PanicSources = append(s.PanicSources, PanicSource{X: x, Y: y, Radius: r, Power: power})
		case elemWidth:
			s.Width = d.u16()
		case elemHeight:
			s.Height = d.u16()
		case elemScale:
			s.Scale = d.f64()
		case elemFileName:
			s.FileName = d.str()
		default:
			return unknown
		}
	case SectionTime:
		switch element {
		case elemEndTime:
			end := d.u32()
			if end == InfiniteEndTime {
				cfg.Time.EndTime = math.Inf(1)
			} else {
				cfg.Time.EndTime = float64(end)
			}
		case elemTick:
			cfg.Time.Tick = d.f64()
		default:
			return unknown
		}
	case SectionSpawn:
		switch element {
		case elemSpawnRate:
			cfg.Spawn.Rate = d.f64()
		case elemSpawnTime:
			cfg.Spawn.Time = d.distribution()
		case elemInitialPeople:
			cfg.Spawn.InitialPeople = d.u16()
		default:
			return unknown
		}
	case SectionForces:
		switch element {
		case elemRepulsionCoeff:
			cfg.Forces.RepulsionCoeff = d.distribution()
		case elemTargetSpeed:
			cfg.Forces.TargetSpeed = d.distribution()
		case elemHerding:
			cfg.Forces.Herding = d.distribution()
		case elemFollowHerd:
			cfg.Forces.FollowHerd = d.u8() != 0
		default:
			return unknown
		}
	case SectionFOV:
		switch element {
		case elemFOVForward:
			cfg.FOV.Forward = d.distribution()
		case elemFOVBackward:
			cfg.FOV.Backward = d.distribution()
		default:
			return unknown
		}
	case SectionDensityMap:
		switch element {
		case elemDMEnabled:
			cfg.DensityMap.Enabled = d.u8() != 0
		case elemDMMin:
			cfg.DensityMap.MinThreshold = d.f64()
		case elemDMMax:
			cfg.DensityMap.MaxThreshold = d.f64()
		default:
			return unknown
		}
	case SectionSimulation:
		switch element {
		case elemMode:
			cfg.Mode = Mode(d.u8())
		default:
			return unknown
		}
	case SectionPanic:
		switch element {
		case elemKInitial:
			cfg.Panic.KInitial = d.f64()
		case elemKSpread:
			cfg.Panic.KSpread = d.f64()
		case elemKDecay:
			cfg.Panic.KDecay = d.f64()
		case elemInitialPanic:
			cfg.Panic.InitialLevel = d.f64()
		default:
			return unknown
		}
	default:
		return unknown
	}
	return nil
}

type encoder struct {
	w   *bufio.Writer
	buf [8]byte
	err error
}

func (e *encoder) write(b []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(b)
	}
}

func (e *encoder) u8(v uint8) { e.write([]byte{v}) }

func (e *encoder) u16(v uint16) {
	intOrder.PutUint16(e.buf[:2], v)
	e.write(e.buf[:2])
}

func (e *encoder) u32(v uint32) {
	intOrder.PutUint32(e.buf[:4], v)
	e.write(e.buf[:4])
}

func (e *encoder) f64(v float64) {
	floatOrder.PutUint64(e.buf[:8], math.Float64bits(v))
	e.write(e.buf[:8])
}

func (e *encoder) head(section uint8, element uint16) {
	e.u8(section)
	e.u16(element)
}

func (e *encoder) distribution(section uint8, element uint16, v dist.Value) {
	e.head(section, element)
	e.u8(uint8(v.Kind))
	e.f64(v.A)
	e.f64(v.B)
}

// Encode writes cfg in the stream format read by Decode.
func Encode(w io.Writer, cfg Config) error {
	e := &encoder{w: bufio.NewWriter(w)}

	s := cfg.Scene
	if s.FileName != "" {
		e.head(SectionScene, elemFileName)
		e.u16(uint16(len(s.FileName)))
		e.write([]byte(s.FileName))
	}
	e.head(SectionScene, elemWidth)
	e.u16(s.Width)
	e.head(SectionScene, elemHeight)
	e.u16(s.Height)
	e.head(SectionScene, elemScale)
	e.f64(s.Scale)
	for _, w := range s.Walls {
		e.head(SectionScene, elemWall)
		e.u16(w.X0)
		e.u16(w.Y0)
		e.u16(w.X1)
		e.u16(w.Y1)
	}
	for _, a := range s.SpawnAreas {
		e.head(SectionScene, elemSpawnArea)
		e.u16(a.X0)
		e.u16(a.Y0)
		e.u16(a.X1)
		e.u16(a.Y1)
		e.u8(a.ID)
	}
	for _, a := range s.TargetAreas {
		e.head(SectionScene, elemTargetArea)
		e.u16(a.X0)
		e.u16(a.Y0)
		e.u16(a.X1)
		e.u16(a.Y1)
		e.u8(a.ID)
		seqLast := a.SequenceNo << 1
		if a.Last {
			seqLast |= 0x01
		}
		e.u8(seqLast)
	}
	for _, p := range s.PanicSources {
		e.head(SectionScene, elemPanicSource)
		e.u16(p.X)
		e.u16(p.Y)
		e.u16(p.Radius)
		e.u8(uint8(math.Round(p.Power * 100)))
	}

	e.head(SectionTime, elemEndTime)
	if math.IsInf(cfg.Time.EndTime, 1) || cfg.Time.EndTime >= float64(InfiniteEndTime) {
		e.u32(InfiniteEndTime)
	} else {
		e.u32(uint32(math.Round(cfg.Time.EndTime)))
	}
	e.head(SectionTime, elemTick)
	e.f64(cfg.Time.Tick)

	e.head(SectionSpawn, elemSpawnRate)
	e.f64(cfg.Spawn.Rate)
	e.distribution(SectionSpawn, elemSpawnTime, cfg.Spawn.Time)
	e.head(SectionSpawn, elemInitialPeople)
	e.u16(cfg.Spawn.InitialPeople)

	e.distribution(SectionForces, elemRepulsionCoeff, cfg.Forces.RepulsionCoeff)
	e.distribution(SectionForces, elemTargetSpeed, cfg.Forces.TargetSpeed)
	e.distribution(SectionForces, elemHerding, cfg.Forces.Herding)
	e.head(SectionForces, elemFollowHerd)
	e.u8(boolByte(cfg.Forces.FollowHerd))

	e.distribution(SectionFOV, elemFOVForward, cfg.FOV.Forward)
	e.distribution(SectionFOV, elemFOVBackward, cfg.FOV.Backward)

	e.head(SectionDensityMap, elemDMEnabled)
	e.u8(boolByte(cfg.DensityMap.Enabled))
	e.head(SectionDensityMap, elemDMMin)
	e.f64(cfg.DensityMap.MinThreshold)
	e.head(SectionDensityMap, elemDMMax)
	e.f64(cfg.DensityMap.MaxThreshold)

	e.head(SectionSimulation, elemMode)
	e.u8(uint8(cfg.Mode))

	e.head(SectionPanic, elemKInitial)
	e.f64(cfg.Panic.KInitial)
	e.head(SectionPanic, elemKSpread)
	e.f64(cfg.Panic.KSpread)
	e.head(SectionPanic, elemKDecay)
	e.f64(cfg.Panic.KDecay)
	e.head(SectionPanic, elemInitialPanic)
	e.f64(cfg.Panic.InitialLevel)

	if e.err != nil {
		return fmt.Errorf("encode config: %w", e.err)
	}
	return e.w.Flush()
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
