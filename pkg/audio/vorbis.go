package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/jfreymuth/oggvorbis"
)

// VorbisReader decodes an Ogg Vorbis stream into interleaved PCMFormatFloat32LE.
type VorbisReader struct {
	OggReader *oggvorbis.Reader
	buf       []float32
}

var _ io.Reader = (*VorbisReader)(nil)

func NewVorbisReader(rawReader io.Reader) (*VorbisReader, error) {
	oggReader, err := oggvorbis.NewReader(rawReader)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}
	return &VorbisReader{
		OggReader: oggReader,
	}, nil
}

func (r *VorbisReader) SampleRate() SampleRate {
	return SampleRate(r.OggReader.SampleRate())
}

func (r *VorbisReader) Channels() Channel {
	return Channel(r.OggReader.Channels())
}

func (r *VorbisReader) PCMFormat() PCMFormat {
	return PCMFormatFloat32LE
}

func (r *VorbisReader) Read(p []byte) (int, error) {
	samples := len(p) / 4
	if samples == 0 {
		return 0, fmt.Errorf("the provided buffer is too short: %d < 4", len(p))
	}
	if cap(r.buf) < samples {
		r.buf = make([]float32, samples)
	}
	buf := r.buf[:samples]

	n, err := r.OggReader.Read(buf)
	for idx, v := range buf[:n] {
		binary.LittleEndian.PutUint32(p[idx*4:], math.Float32bits(v))
	}
	return n * 4, err
}
