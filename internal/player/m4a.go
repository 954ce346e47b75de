package player

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/llehouerou/alac"
	faad2 "github.com/llehouerou/go-faad2"
	m4a "github.com/llehouerou/go-m4a"
)

// alacFrameSize is the frames-per-packet ALAC encoders use by default.
const alacFrameSize = 4096

// m4aContainer is the part of the MP4 sample table the stream walks.
type m4aContainer interface {
	SampleCount() int
	ReadSample(i int) ([]byte, error)
	SampleTime(i int) time.Duration
	SeekToTime(d time.Duration) int
}

// m4aCodec turns one container sample into stereo frames.
type m4aCodec interface {
	decode(sample []byte) ([][2]float64, error)
	close()
}

type aacCodec struct {
	dec      *faad2.Decoder
	channels int
}

func newAACCodec(config []byte, channels int) (*aacCodec, error) {
	ctx := context.Background()
	dec, err := faad2.NewDecoder(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "aac decoder")
	}
	if err := dec.Init(ctx, config); err != nil {
		dec.Close(ctx)
		return nil, errors.Wrap(err, "aac config")
	}
	return &aacCodec{dec: dec, channels: channels}, nil
}

func (c *aacCodec) decode(sample []byte) ([][2]float64, error) {
	pcm, err := c.dec.Decode(context.Background(), sample)
	if err != nil {
		return nil, err
	}
	return pcm16Frames(pcm, c.channels), nil
}

func (c *aacCodec) close() { c.dec.Close(context.Background()) }

type alacCodec struct {
	dec      *alac.Alac
	depth    int
	channels int
}

func newALACCodec(rate, depth, channels int) (*alacCodec, error) {
	dec, err := alac.NewWithConfig(alac.Config{
		SampleRate:  rate,
		SampleSize:  depth,
		NumChannels: channels,
		FrameSize:   alacFrameSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "alac decoder")
	}
	return &alacCodec{dec: dec, depth: depth, channels: channels}, nil
}

func (c *alacCodec) decode(sample []byte) ([][2]float64, error) {
	return pcmBytesFrames(c.dec.Decode(sample), c.depth, c.channels), nil
}

func (*alacCodec) close() {}

// pcm16Frames converts interleaved 16-bit samples. Mono is duplicated and
// channels past the second are dropped.
func pcm16Frames(pcm []int16, channels int) [][2]float64 {
	channels = max(channels, 1)
	frames := make([][2]float64, len(pcm)/channels)
	for i := range frames {
		left := float64(pcm[i*channels]) / 32768
		right := left
		if channels > 1 {
			right = float64(pcm[i*channels+1]) / 32768
		}
		frames[i] = [2]float64{left, right}
	}
	return frames
}

// pcmBytesFrames converts interleaved little-endian PCM of 16 or 24 bits.
func pcmBytesFrames(data []byte, depth, channels int) [][2]float64 {
	channels = max(channels, 1)
	width := 2
	scale := float64(1 << 15)
	if depth == 24 {
		width = 3
		scale = 1 << 23
	}
	sample := func(off int) float64 {
		if width == 2 {
			return float64(int16(uint16(data[off])|uint16(data[off+1])<<8)) / scale
		}
		v := int32(uint32(data[off])<<8|uint32(data[off+1])<<16|uint32(data[off+2])<<24) >> 8
		return float64(v) / scale
	}

	stride := width * channels
	frames := make([][2]float64, len(data)/stride)
	for i := range frames {
		off := i * stride
		left := sample(off)
		right := left
		if channels > 1 {
			right = sample(off + width)
		}
		frames[i] = [2]float64{left, right}
	}
	return frames
}

// decodeM4A opens an MP4 audio file holding AAC or ALAC.
func decodeM4A(rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	c, err := m4a.Open(rc)
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "open m4a")
	}
	rate := int(c.SampleRate())
	channels := int(c.Channels())
	depth := int(c.SampleSize())

	var codec m4aCodec
	switch c.Codec() {
	case m4a.CodecAAC:
		codec, err = newAACCodec(c.CodecConfig(), channels)
	case m4a.CodecALAC:
		codec, err = newALACCodec(rate, depth, channels)
	default:
		err = errors.Wrapf(ErrUnsupportedFormat, "m4a codec %s", c.Codec())
	}
	if err != nil {
		return nil, beep.Format{}, err
	}

	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 2, Precision: 2}
	if c.Codec() == m4a.CodecALAC && depth == 24 {
		format.Precision = 3
	}
	length := int(c.Duration().Seconds() * float64(rate))
	return newM4AStream(c, codec, rate, length, rc), format, nil
}

// m4aStream decodes container samples on demand, buffering the frames of
// the sample being drained.
type m4aStream struct {
	container m4aContainer
	codec     m4aCodec
	closer    io.Closer
	rate      int
	length    int

	next    int
	pos     int
	pending [][2]float64
	err     error
}

func newM4AStream(c m4aContainer, codec m4aCodec, rate, length int, closer io.Closer) *m4aStream {
	return &m4aStream{container: c, codec: codec, closer: closer, rate: rate, length: length}
}

func (s *m4aStream) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}
	n := 0
	for n < len(samples) {
		if len(s.pending) > 0 {
			c := copy(samples[n:], s.pending)
			s.pending = s.pending[c:]
			n += c
			continue
		}
		if s.next >= s.container.SampleCount() {
			break
		}
		data, err := s.container.ReadSample(s.next)
		if err != nil {
			s.err = errors.Wrapf(err, "read m4a sample %d", s.next)
			break
		}
		s.next++
		frames, err := s.codec.decode(data)
		if err != nil {
			s.err = errors.Wrapf(err, "decode m4a sample %d", s.next-1)
			break
		}
		s.pending = frames
	}
	s.pos += n
	return n, n > 0
}

func (s *m4aStream) Err() error { return s.err }

func (s *m4aStream) Len() int { return s.length }

func (s *m4aStream) Position() int { return s.pos }

// Seek lands on the container sample holding p; the position reports where
// that sample starts.
func (s *m4aStream) Seek(p int) error {
	p = max(0, min(p, s.length))
	target := time.Duration(int64(p) * int64(time.Second) / int64(max(s.rate, 1)))
	s.next = s.container.SeekToTime(target)
	s.pos = int(int64(s.container.SampleTime(s.next)) * int64(s.rate) / int64(time.Second))
	s.pending = nil
	s.err = nil
	return nil
}

func (s *m4aStream) Close() error {
	s.codec.close()
	return s.closer.Close()
}
