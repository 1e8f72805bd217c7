package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

type SampleRate uint32

type Channel uint32

type PCMFormat uint

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatU8
	PCMFormatS16LE
	PCMFormatS16BE
	PCMFormatS24LE
	PCMFormatS24BE
	PCMFormatS32LE
	PCMFormatS32BE
	PCMFormatS64LE
	PCMFormatS64BE
	PCMFormatFloat32LE
	PCMFormatFloat32BE
	PCMFormatFloat64LE
	PCMFormatFloat64BE
	EndOfPCMFormat
)

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "<undefined>"
	case PCMFormatU8:
		return "u8"
	case PCMFormatS16LE:
		return "s16le"
	case PCMFormatS16BE:
		return "s16be"
	case PCMFormatS24LE:
		return "s24le"
	case PCMFormatS24BE:
		return "s24be"
	case PCMFormatS32LE:
		return "s32le"
	case PCMFormatS32BE:
		return "s32be"
	case PCMFormatS64LE:
		return "s64le"
	case PCMFormatS64BE:
		return "s64be"
	case PCMFormatFloat32LE:
		return "f32le"
	case PCMFormatFloat32BE:
		return "f32be"
	case PCMFormatFloat64LE:
		return "f64le"
	case PCMFormatFloat64BE:
		return "f64be"
	default:
		return fmt.Sprintf("unknown_format_%d", uint(f))
	}
}

// ParsePCMFormat is the inverse of PCMFormat.String.
func ParsePCMFormat(s string) (PCMFormat, error) {
	for f := PCMFormatU8; f < EndOfPCMFormat; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return PCMFormatUndefined, fmt.Errorf("unknown PCM format '%s'", s)
}

// Size returns the size of a single sample in bytes.
func (f PCMFormat) Size() uint {
	switch f {
	case PCMFormatU8:
		return 1
	case PCMFormatS16LE, PCMFormatS16BE:
		return 2
	case PCMFormatS24LE, PCMFormatS24BE:
		return 3
	case PCMFormatS32LE, PCMFormatS32BE, PCMFormatFloat32LE, PCMFormatFloat32BE:
		return 4
	case PCMFormatS64LE, PCMFormatS64BE, PCMFormatFloat64LE, PCMFormatFloat64BE:
		return 8
	default:
		return 0
	}
}

// Decode returns the sample stored in the beginning of `p` normalized to [-1, 1].
func (f PCMFormat) Decode(p []byte) float64 {
	switch f {
	case PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case PCMFormatS24LE:
		return float64(signExtend24(uint32(p[0])|uint32(p[1])<<8|uint32(p[2])<<16)) / 8388608
	case PCMFormatS24BE:
		return float64(signExtend24(uint32(p[2])|uint32(p[1])<<8|uint32(p[0])<<16)) / 8388608
	case PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483648
	case PCMFormatS64LE:
		return float64(int64(binary.LittleEndian.Uint64(p))) / 9223372036854775808
	case PCMFormatS64BE:
		return float64(int64(binary.BigEndian.Uint64(p))) / 9223372036854775808
	case PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func signExtend24(v uint32) int32 {
	val := int32(v)
	if val&0x800000 != 0 {
		val |= -16777216
	}
	return val
}

// Encode stores `v` (expected to be within [-1, 1]) into the beginning of `p`.
// Integer formats are saturated instead of wrapping around.
func (f PCMFormat) Encode(p []byte, v float64) {
	switch f {
	case PCMFormatU8:
		p[0] = byte(clampInt(math.Round(v*128+128), 0, math.MaxUint8))
	case PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(int16(clampInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(int16(clampInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case PCMFormatS24LE:
		val := int32(clampInt(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val)
		p[1] = byte(val >> 8)
		p[2] = byte(val >> 16)
	case PCMFormatS24BE:
		val := int32(clampInt(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val >> 16)
		p[1] = byte(val >> 8)
		p[2] = byte(val)
	case PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(int32(clampInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case PCMFormatS32BE:
		binary.BigEndian.PutUint32(p, uint32(int32(clampInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case PCMFormatS64LE:
		binary.LittleEndian.PutUint64(p, uint64(encodeS64(v)))
	case PCMFormatS64BE:
		binary.BigEndian.PutUint64(p, uint64(encodeS64(v)))
	case PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	case PCMFormatFloat64BE:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func clampInt(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

func encodeS64(v float64) int64 {
	switch {
	case v >= 1:
		return math.MaxInt64
	case v <= -1:
		return math.MinInt64
	}
	return int64(v * 9223372036854775808)
}

type Encoding interface {
	BytesPerSample() uint
	BytesForDuration(time.Duration) uint64
}

type EncodingPCM struct {
	PCMFormat  PCMFormat
	SampleRate SampleRate
}

var _ Encoding = EncodingPCM{}

func (e EncodingPCM) BytesPerSample() uint {
	return e.PCMFormat.Size()
}

// BytesForDuration returns the amount of bytes a single channel takes for the given duration.
func (e EncodingPCM) BytesForDuration(d time.Duration) uint64 {
	samples := uint64(d) * uint64(e.SampleRate) / uint64(time.Second)
	return samples * uint64(e.BytesPerSample())
}
