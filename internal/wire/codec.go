package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

const headerSize = 8

// MaxPayloadSize bounds a single packet's payload so a corrupt or
// hostile size field cannot force an unbounded allocation.
const MaxPayloadSize = 1 << 20 // 1 MiB

// Sentinel codec errors. Session code matches these with errors.Is to
// decide between a wire Error reply and a silent close.
var (
	// ErrInvalidPacket marks a known packet type whose payload violates
	// its length or intra-packet invariants.
	ErrInvalidPacket = errors.New("wire: invalid packet")

	// ErrUnknownMagic marks a type field outside the registered set of
	// magics.
	ErrUnknownMagic = errors.New("wire: unknown packet type")

	// ErrUnexpectedEOF marks a stream that ended mid-frame.
	ErrUnexpectedEOF = errors.New("wire: unexpected end of stream")
)

// bodyPool reuses payload-sized byte slices across Decode calls. Every
// decoded field that outlives the call is copied out of the pooled
// buffer before it is returned to the pool, so callers never observe
// reuse.
var bodyPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 256)
		return &buf
	},
}

// Payload is implemented by every packet body type.
type Payload interface {
	// Type returns the magic this payload encodes under.
	Type() PacketType
	// encode returns the payload bytes only, excluding the 8-byte
	// header.
	encode() []byte
}

// Packet pairs a magic with its decoded payload.
//
// ClientPacket and ServerPacket are the same wire shape; only which
// concrete Payload types are legal differs by direction, and that
// distinction lives in which Go type the caller constructs (for the
// request/response pairs that share a magic) or passes to Decode (for
// pairs where the choice is about which decode function interprets the
// bytes).
type Packet struct {
	Type    PacketType
	Payload Payload
}

type (
	ClientPacket = Packet
	ServerPacket = Packet
)

// Encode writes p's header and payload to w. The emitted size is always
// computed from the payload, never trusted from elsewhere.
func Encode(w io.Writer, p *Packet) error {
	body := p.Payload.encode()

	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(p.Payload.Type()))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("wire: write payload: %w", err)
		}
	}
	return nil
}

// Decode reads one framed packet from r. dir resolves the handful of
// magics whose payload shape differs between client and server.
func Decode(r io.Reader, dir Direction) (*Packet, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: header: %v", ErrUnexpectedEOF, err)
	}

	size := binary.BigEndian.Uint32(hdr[0:4])
	typ := PacketType(binary.BigEndian.Uint32(hdr[4:8]))

	if !typ.Known() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMagic, typ)
	}
	if size > MaxPayloadSize {
		return nil, fmt.Errorf("%w: declared size %d exceeds %d", ErrInvalidPacket, size, MaxPayloadSize)
	}

	bufp := bodyPool.Get().(*[]byte)
	defer bodyPool.Put(bufp)
	if cap(*bufp) < int(size) {
		*bufp = make([]byte, size)
	} else {
		*bufp = (*bufp)[:size]
	}
	body := *bufp
	if size > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("%w: payload: %v", ErrUnexpectedEOF, err)
		}
	}

	payload, err := decodePayload(typ, dir, body)
	if err != nil {
		return nil, err
	}
	return &Packet{Type: typ, Payload: payload}, nil
}

// cloneBytes copies b into a freshly allocated slice, or returns nil
// for an empty input. Every decoder uses this for variable-length
// fields so decoded payloads never alias the pooled read buffer.
func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// reader walks a payload body left to right, producing ErrInvalidPacket
// on any out-of-bounds read instead of panicking.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: truncated u32 field", ErrInvalidPacket)
	}
	v := binary.BigEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("%w: truncated u64 field", ErrInvalidPacket)
	}
	v := binary.BigEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v, nil
}

func (r *reader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("%w: truncated u8 field", ErrInvalidPacket)
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// bytesN returns a clone of the next n bytes.
func (r *reader) bytesN(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: truncated byte field (want %d, have %d)", ErrInvalidPacket, n, r.remaining())
	}
	b := cloneBytes(r.buf[r.off : r.off+n])
	r.off += n
	return b, nil
}

// rest returns a clone of every byte not yet consumed.
func (r *reader) rest() []byte {
	b := cloneBytes(r.buf[r.off:])
	r.off = len(r.buf)
	return b
}
