package player

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/jfreymuth/vorbis"
	"github.com/jj11hh/opus"
)

const (
	opusSampleRate = 48000
	// opusPreroll is decoded and dropped before a seek target so the
	// decoder converges, 80 ms at 48 kHz.
	opusPreroll = 3840
	// oggTailScan bounds the search for the final granule position.
	oggTailScan = 64 * 1024

	oggHeaderSize   = 27
	oggFlagContinue = 0x01
)

var (
	errOggCapture     = errors.New("ogg: missing capture pattern")
	errOggVersion     = errors.New("ogg: unsupported version")
	errOggCodec       = errors.New("ogg: not an Opus or Vorbis stream")
	errOpusHead       = errors.New("opus: invalid OpusHead")
	errVorbisHead     = errors.New("vorbis: invalid identification header")
	errVorbisNotReady = errors.New("vorbis: headers incomplete")
)

// oggPage is one parsed page. packets holds the packets that end on this
// page; tail is a packet that continues on the next one.
type oggPage struct {
	granule   int64
	continued bool
	size      int64
	packets   [][]byte
	tail      []byte
}

// readOggHeader reads a page header and returns the page with its lacing
// values. The body is left unread.
func readOggHeader(r io.Reader) (*oggPage, []byte, error) {
	var buf [oggHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, nil, err
	}
	if string(buf[:4]) != "OggS" {
		return nil, nil, errOggCapture
	}
	if buf[4] != 0 {
		return nil, nil, errOggVersion
	}
	lacing := make([]byte, buf[26])
	if _, err := io.ReadFull(r, lacing); err != nil {
		return nil, nil, err
	}
	body := 0
	for _, l := range lacing {
		body += int(l)
	}
	p := &oggPage{
		granule:   int64(binary.LittleEndian.Uint64(buf[6:14])),
		continued: buf[5]&oggFlagContinue != 0,
		size:      int64(oggHeaderSize + len(lacing) + body),
	}
	return p, lacing, nil
}

// readOggPage reads a full page and splits its body into packets.
func readOggPage(r io.Reader) (*oggPage, error) {
	p, lacing, err := readOggHeader(r)
	if err != nil {
		return nil, err
	}
	body := make([]byte, p.size-int64(oggHeaderSize+len(lacing)))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	start, end := 0, 0
	for _, l := range lacing {
		end += int(l)
		if l < 255 {
			p.packets = append(p.packets, body[start:end])
			start = end
		}
	}
	if start < end {
		p.tail = body[start:end]
	}
	return p, nil
}

// oggPackets reassembles packets across page boundaries.
type oggPackets struct {
	r       io.Reader
	pending [][]byte
	partial []byte
	// resync drops the complete packets of the next page and keeps only
	// its tail, so decoding resumes on a packet boundary after a seek.
	resync bool
}

func (p *oggPackets) next() ([]byte, error) {
	for len(p.pending) == 0 {
		page, err := readOggPage(p.r)
		if err != nil {
			return nil, err
		}
		p.add(page)
	}
	pkt := p.pending[0]
	p.pending = p.pending[1:]
	return pkt, nil
}

func (p *oggPackets) add(page *oggPage) {
	pkts, tail := page.packets, page.tail
	if p.resync {
		p.resync = false
		p.partial = tail
		return
	}
	if page.continued {
		switch {
		case p.partial == nil:
			// The start of this packet was never read.
			if len(pkts) > 0 {
				pkts = pkts[1:]
			} else {
				tail = nil
			}
		case len(pkts) > 0:
			pkts[0] = append(p.partial, pkts[0]...)
		default:
			tail = append(p.partial, tail...)
		}
	}
	p.partial = tail
	p.pending = append(p.pending, pkts...)
}

func (p *oggPackets) reset(r io.Reader, resync bool) {
	p.r = r
	p.pending = nil
	p.partial = nil
	p.resync = resync
}

// oggCodec decodes the packets of one logical Ogg stream.
type oggCodec interface {
	sampleRate() int
	channels() int
	// preSkip is the number of leading decoded samples that are not audio.
	preSkip() int
	// preroll is how far before a seek target decoding must restart.
	preroll() int
	// header consumes one header packet after the first and reports
	// whether the codec is ready for audio packets.
	header(pkt []byte) (bool, error)
	ready() bool
	// decode writes interleaved samples to pcm and returns the number of
	// samples per channel.
	decode(pkt []byte, pcm []float32) (int, error)
	reset()
}

// detectOggCodec picks a codec from the first packet of a stream.
func detectOggCodec(first []byte) (oggCodec, error) {
	switch {
	case bytes.HasPrefix(first, []byte("OpusHead")):
		return newOpusCodec(first)
	case len(first) >= 7 && first[0] == 0x01 && string(first[1:7]) == "vorbis":
		return newVorbisCodec(first)
	}
	return nil, errOggCodec
}

type opusCodec struct {
	dec  *opus.Decoder
	ch   int
	skip int
	tags bool
}

func newOpusCodec(head []byte) (*opusCodec, error) {
	if len(head) < 19 || head[8]&0xf0 != 0 {
		return nil, errOpusHead
	}
	ch := int(head[9])
	if ch < 1 || ch > 2 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "opus with %d channels", ch)
	}
	dec, err := opus.NewDecoder(opusSampleRate, ch)
	if err != nil {
		return nil, errors.Wrap(err, "opus decoder")
	}
	return &opusCodec{dec: dec, ch: ch, skip: int(binary.LittleEndian.Uint16(head[10:12]))}, nil
}

func (c *opusCodec) sampleRate() int { return opusSampleRate }
func (c *opusCodec) channels() int   { return c.ch }
func (c *opusCodec) preSkip() int    { return c.skip }
func (c *opusCodec) preroll() int    { return opusPreroll }
func (c *opusCodec) ready() bool     { return c.tags }
func (c *opusCodec) reset()          {}

// header takes the OpusTags packet, which carries no decoder state.
func (c *opusCodec) header([]byte) (bool, error) {
	c.tags = true
	return true, nil
}

func (c *opusCodec) decode(pkt []byte, pcm []float32) (int, error) {
	return c.dec.DecodeFloat32(pkt, pcm)
}

type vorbisCodec struct {
	dec     *vorbis.Decoder
	ch      int
	rate    int
	headers int
}

func newVorbisCodec(ident []byte) (*vorbisCodec, error) {
	if len(ident) < 16 || binary.LittleEndian.Uint32(ident[7:11]) != 0 {
		return nil, errVorbisHead
	}
	c := &vorbisCodec{
		dec:  &vorbis.Decoder{},
		ch:   int(ident[11]),
		rate: int(binary.LittleEndian.Uint32(ident[12:16])),
	}
	if c.ch < 1 {
		return nil, errVorbisHead
	}
	if err := c.dec.ReadHeader(ident); err != nil {
		return nil, errors.Wrap(err, "vorbis identification header")
	}
	c.headers = 1
	return c, nil
}

func (c *vorbisCodec) sampleRate() int { return c.rate }
func (c *vorbisCodec) channels() int   { return c.ch }
func (c *vorbisCodec) preSkip() int    { return 0 }
func (c *vorbisCodec) preroll() int    { return 0 }
func (c *vorbisCodec) ready() bool     { return c.headers >= 3 }
func (c *vorbisCodec) reset()          { c.dec.Clear() }

// header takes the comment and setup headers.
func (c *vorbisCodec) header(pkt []byte) (bool, error) {
	if err := c.dec.ReadHeader(pkt); err != nil {
		return false, errors.Wrap(err, "vorbis header")
	}
	c.headers++
	return c.ready(), nil
}

func (c *vorbisCodec) decode(pkt []byte, pcm []float32) (int, error) {
	if !c.ready() {
		return 0, errVorbisNotReady
	}
	out, err := c.dec.Decode(pkt)
	if err != nil {
		return 0, err
	}
	return copy(pcm, out) / c.ch, nil
}

// decodeOgg decodes an Ogg Opus or Ogg Vorbis stream.
func decodeOgg(rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	return openOgg(rc, detectOggCodec)
}

func openOgg(rc io.ReadSeekCloser, detect func([]byte) (oggCodec, error)) (beep.StreamSeekCloser, beep.Format, error) {
	pk := &oggPackets{r: rc}
	first, err := pk.next()
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "ogg: read first page")
	}
	codec, err := detect(first)
	if err != nil {
		return nil, beep.Format{}, err
	}
	for !codec.ready() {
		pkt, err := pk.next()
		if err != nil {
			return nil, beep.Format{}, errors.Wrap(err, "ogg: read headers")
		}
		if _, err := codec.header(pkt); err != nil {
			return nil, beep.Format{}, err
		}
	}

	// Audio starts on a fresh page after the headers.
	dataStart, err := rc.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, beep.Format{}, err
	}
	last, err := lastGranule(rc, dataStart)
	if err != nil {
		return nil, beep.Format{}, err
	}
	if _, err := rc.Seek(dataStart, io.SeekStart); err != nil {
		return nil, beep.Format{}, err
	}

	d := &oggDecoder{
		src:       rc,
		codec:     codec,
		packets:   pk,
		dataStart: dataStart,
		length:    max(int(last)-codec.preSkip(), 0),
		pcm:       make([]float32, 8192*codec.channels()),
		discard:   codec.preSkip(),
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(codec.sampleRate()),
		NumChannels: min(codec.channels(), 2),
		Precision:   2,
	}
	return d, format, nil
}

// lastGranule finds the granule position of the final page by scanning
// the end of the stream.
func lastGranule(r io.ReadSeeker, dataStart int64) (int64, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	from := max(end-oggTailScan, dataStart)
	if _, err := r.Seek(from, io.SeekStart); err != nil {
		return 0, err
	}
	tail := make([]byte, end-from)
	if _, err := io.ReadFull(r, tail); err != nil {
		return 0, err
	}
	for i := bytes.LastIndex(tail, []byte("OggS")); i >= 0; i = bytes.LastIndex(tail[:i], []byte("OggS")) {
		if len(tail)-i < oggHeaderSize || tail[i+4] != 0 {
			continue
		}
		if g := int64(binary.LittleEndian.Uint64(tail[i+6 : i+14])); g >= 0 {
			return g, nil
		}
	}
	return 0, nil
}

// oggDecoder streams decoded Ogg audio as stereo samples.
type oggDecoder struct {
	src       io.ReadSeekCloser
	codec     oggCodec
	packets   *oggPackets
	dataStart int64
	length    int
	pos       int

	pcm     []float32
	buf     []float32
	discard int
	err     error
}

func (d *oggDecoder) Stream(samples [][2]float64) (n int, ok bool) {
	if d.err != nil {
		return 0, false
	}
	ch := d.codec.channels()
	for n < len(samples) && (d.length == 0 || d.pos < d.length) {
		if len(d.buf) == 0 {
			pkt, err := d.packets.next()
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					d.err = err
				}
				break
			}
			k, err := d.codec.decode(pkt, d.pcm)
			if err != nil {
				continue // skip corrupt packets
			}
			d.buf = d.pcm[:k*ch]
			if d.discard > 0 {
				drop := min(d.discard, k)
				d.buf = d.buf[drop*ch:]
				d.discard -= drop
			}
			continue
		}
		samples[n][0] = float64(d.buf[0])
		if ch > 1 {
			samples[n][1] = float64(d.buf[1])
		} else {
			samples[n][1] = samples[n][0]
		}
		d.buf = d.buf[ch:]
		n++
		d.pos++
	}
	return n, n > 0
}

func (d *oggDecoder) Err() error    { return d.err }
func (d *oggDecoder) Len() int      { return d.length }
func (d *oggDecoder) Position() int { return d.pos }
func (d *oggDecoder) Close() error  { return d.src.Close() }

// Seek restarts decoding at the last page that ends before the target,
// less the codec's preroll, and drops samples up to the target.
func (d *oggDecoder) Seek(p int) error {
	p = max(0, min(p, d.length))
	target := int64(p + d.codec.preSkip())
	limit := target - int64(d.codec.preroll())

	off, start := d.dataStart, int64(0)
	resync := false
	for cur := d.dataStart; ; {
		if _, err := d.src.Seek(cur, io.SeekStart); err != nil {
			return err
		}
		page, _, err := readOggHeader(d.src)
		if err != nil {
			break
		}
		if page.granule >= 0 {
			if page.granule > limit {
				break
			}
			off, start, resync = cur, page.granule, true
		}
		cur += page.size
	}

	if _, err := d.src.Seek(off, io.SeekStart); err != nil {
		return err
	}
	d.packets.reset(d.src, resync)
	d.codec.reset()
	d.buf = nil
	d.discard = int(target - start)
	d.pos = p
	d.err = nil
	return nil
}
