package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/dantte-lp/brlapid/internal/keycode"
)

// decodePayload dispatches on (t, dir) to the variant's decoder. t is
// already known to be a registered magic by the time Decode calls this.
func decodePayload(t PacketType, dir Direction, body []byte) (Payload, error) {
	switch t {
	case TypeAck:
		return decodeAck(body)
	case TypeError:
		return decodeError(body)
	case TypeException:
		return decodeException(body)
	case TypeKey:
		return decodeKey(body)
	case TypeWrite:
		return decodeWrite(body)
	case TypePacket:
		return decodeOpaquePacket(body)
	case TypeVersion:
		return decodeVersion(body)
	case TypeAuth:
		if dir == FromServer {
			return decodeAuthRequest(body)
		}
		return decodeAuthResponse(body)
	case TypeGetDriverName:
		if dir == FromClient {
			return decodeGetDriverNameRequest(body)
		}
		return decodeGetDriverNameResponse(body)
	case TypeGetModelID:
		if dir == FromClient {
			return decodeGetModelIDRequest(body)
		}
		return decodeGetModelIDResponse(body)
	case TypeGetDisplaySize:
		if dir == FromClient {
			return decodeGetDisplaySizeRequest(body)
		}
		return decodeGetDisplaySizeResponse(body)
	case TypeEnterTtyMode:
		return decodeEnterTtyMode(body)
	case TypeSetFocus:
		return decodeSetFocus(body)
	case TypeLeaveTtyMode:
		return decodeLeaveTtyMode(body)
	case TypeIgnoreKeyRanges:
		return decodeIgnoreKeyRanges(body)
	case TypeAcceptKeyRanges:
		return decodeAcceptKeyRanges(body)
	case TypeEnterRawMode:
		return decodeEnterRawMode(body)
	case TypeLeaveRawMode:
		return decodeLeaveRawMode(body)
	case TypeSuspendDriver:
		return decodeSuspendDriver(body)
	case TypeResumeDriver:
		return decodeResumeDriver(body)
	case TypeSynchronize:
		return decodeSynchronize(body)
	case TypeParameterRequest:
		return decodeParameterRequest(body)
	case TypeParameterValue:
		return decodeParameterValue(body)
	case TypeParameterUpdate:
		return decodeParameterUpdate(body)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMagic, t)
	}
}

// ---------------------------------------------------------------------
// Ack — empty.
// ---------------------------------------------------------------------

type Ack struct{}

func (Ack) Type() PacketType { return TypeAck }
func (Ack) encode() []byte   { return nil }

func decodeAck(body []byte) (Payload, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: Ack carries %d unexpected bytes", ErrInvalidPacket, len(body))
	}
	return Ack{}, nil
}

// ---------------------------------------------------------------------
// Version — 4 bytes, both directions.
// ---------------------------------------------------------------------

type Version struct {
	Version uint32
}

func (Version) Type() PacketType { return TypeVersion }

func (v Version) encode() []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v.Version)
	return b[:]
}

func decodeVersion(body []byte) (Payload, error) {
	r := reader{buf: body}
	version, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: Version carries %d trailing bytes", ErrInvalidPacket, r.remaining())
	}
	return Version{Version: version}, nil
}

// ---------------------------------------------------------------------
// Auth — request (server->client) and response (client->server) are
// different shapes under the same magic.
// ---------------------------------------------------------------------

// AuthRequest is the server->client form: the set of auth types the
// server will accept.
type AuthRequest struct {
	Types []AuthType
}

func (AuthRequest) Type() PacketType { return TypeAuth }

func (a AuthRequest) encode() []byte {
	out := make([]byte, 0, 4*len(a.Types))
	for _, t := range a.Types {
		out = binary.BigEndian.AppendUint32(out, uint32(t))
	}
	return out
}

func decodeAuthRequest(body []byte) (Payload, error) {
	if len(body)%4 != 0 {
		return nil, fmt.Errorf("%w: AuthRequest length %d not a multiple of 4", ErrInvalidPacket, len(body))
	}
	types := make([]AuthType, 0, len(body)/4)
	for off := 0; off < len(body); off += 4 {
		types = append(types, AuthType(binary.BigEndian.Uint32(body[off:off+4])))
	}
	return AuthRequest{Types: types}, nil
}

// AuthResponse is the client->server form: the chosen auth type and its
// NUL-terminated key.
type AuthResponse struct {
	AuthType AuthType
	Key      []byte
}

func (AuthResponse) Type() PacketType { return TypeAuth }

func (a AuthResponse) encode() []byte {
	out := make([]byte, 0, 4+len(a.Key)+1)
	out = binary.BigEndian.AppendUint32(out, uint32(a.AuthType))
	out = append(out, a.Key...)
	out = append(out, 0)
	return out
}

func decodeAuthResponse(body []byte) (Payload, error) {
	r := reader{buf: body}
	authType, err := r.u32()
	if err != nil {
		return nil, err
	}
	if AuthType(authType) != AuthKey {
		return nil, fmt.Errorf("%w: Auth response with non-Key auth type %s", ErrInvalidPacket, AuthType(authType))
	}
	rest := r.rest()
	if len(rest) == 0 || rest[len(rest)-1] != 0 {
		return nil, fmt.Errorf("%w: Auth response key is not NUL-terminated", ErrInvalidPacket)
	}
	return AuthResponse{AuthType: AuthType(authType), Key: rest[:len(rest)-1]}, nil
}

// ---------------------------------------------------------------------
// Error — code, offending type, offending payload.
// ---------------------------------------------------------------------

type ErrorPacket struct {
	Code             ErrorCode
	OffendingType    PacketType
	OffendingPayload []byte
}

func (ErrorPacket) Type() PacketType { return TypeError }

func (e ErrorPacket) encode() []byte {
	out := make([]byte, 0, 8+len(e.OffendingPayload))
	out = binary.BigEndian.AppendUint32(out, uint32(e.Code))
	out = binary.BigEndian.AppendUint32(out, uint32(e.OffendingType))
	out = append(out, e.OffendingPayload...)
	return out
}

func decodeError(body []byte) (Payload, error) {
	r := reader{buf: body}
	code, err := r.u32()
	if err != nil {
		return nil, err
	}
	offType, err := r.u32()
	if err != nil {
		return nil, err
	}
	return ErrorPacket{
		Code:             ErrorCode(code),
		OffendingType:    PacketType(offType),
		OffendingPayload: r.rest(),
	}, nil
}

// ---------------------------------------------------------------------
// Exception — whole original packet echoed back.
// ---------------------------------------------------------------------

type Exception struct {
	Packet []byte
}

func (Exception) Type() PacketType { return TypeException }
func (e Exception) encode() []byte { return e.Packet }

func decodeException(body []byte) (Payload, error) {
	return Exception{Packet: cloneBytes(body)}, nil
}

// ---------------------------------------------------------------------
// Key — 8-byte packed keycode word.
// ---------------------------------------------------------------------

type Key struct {
	Key keycode.Keycode
}

func (Key) Type() PacketType { return TypeKey }

func (k Key) encode() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], keycode.Pack(k.Key))
	return b[:]
}

func decodeKey(body []byte) (Payload, error) {
	r := reader{buf: body}
	word, err := r.u64()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: Key carries %d trailing bytes", ErrInvalidPacket, r.remaining())
	}
	kc, err := keycode.Unpack(word)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	if kc.Kind == keycode.KindBrailleCommand {
		if _, err := keycode.DecodeBrailleCommand(kc.Code); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
		}
	}
	return Key{Key: kc}, nil
}

// ---------------------------------------------------------------------
// GetDriverName / GetModelId / GetDisplaySize — empty request, data
// response.
// ---------------------------------------------------------------------

type GetDriverNameRequest struct{}

func (GetDriverNameRequest) Type() PacketType { return TypeGetDriverName }
func (GetDriverNameRequest) encode() []byte   { return nil }

func decodeGetDriverNameRequest(body []byte) (Payload, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: GetDriverName request carries a body", ErrInvalidPacket)
	}
	return GetDriverNameRequest{}, nil
}

type GetDriverNameResponse struct {
	Name string
}

func (GetDriverNameResponse) Type() PacketType { return TypeGetDriverName }

func (g GetDriverNameResponse) encode() []byte {
	return append([]byte(g.Name), 0)
}

func decodeGetDriverNameResponse(body []byte) (Payload, error) {
	name, err := decodeNulString(body)
	if err != nil {
		return nil, err
	}
	return GetDriverNameResponse{Name: name}, nil
}

type GetModelIDRequest struct{}

func (GetModelIDRequest) Type() PacketType { return TypeGetModelID }
func (GetModelIDRequest) encode() []byte   { return nil }

func decodeGetModelIDRequest(body []byte) (Payload, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: GetModelId request carries a body", ErrInvalidPacket)
	}
	return GetModelIDRequest{}, nil
}

type GetModelIDResponse struct {
	ModelID string
}

func (GetModelIDResponse) Type() PacketType { return TypeGetModelID }

func (g GetModelIDResponse) encode() []byte {
	return append([]byte(g.ModelID), 0)
}

func decodeGetModelIDResponse(body []byte) (Payload, error) {
	id, err := decodeNulString(body)
	if err != nil {
		return nil, err
	}
	return GetModelIDResponse{ModelID: id}, nil
}

type GetDisplaySizeRequest struct{}

func (GetDisplaySizeRequest) Type() PacketType { return TypeGetDisplaySize }
func (GetDisplaySizeRequest) encode() []byte   { return nil }

func decodeGetDisplaySizeRequest(body []byte) (Payload, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: GetDisplaySize request carries a body", ErrInvalidPacket)
	}
	return GetDisplaySizeRequest{}, nil
}

type GetDisplaySizeResponse struct {
	Width  uint32
	Height uint32
}

func (GetDisplaySizeResponse) Type() PacketType { return TypeGetDisplaySize }

func (g GetDisplaySizeResponse) encode() []byte {
	out := make([]byte, 0, 8)
	out = binary.BigEndian.AppendUint32(out, g.Width)
	out = binary.BigEndian.AppendUint32(out, g.Height)
	return out
}

func decodeGetDisplaySizeResponse(body []byte) (Payload, error) {
	r := reader{buf: body}
	width, err := r.u32()
	if err != nil {
		return nil, err
	}
	height, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: GetDisplaySize response carries trailing bytes", ErrInvalidPacket)
	}
	return GetDisplaySizeResponse{Width: width, Height: height}, nil
}

// decodeNulString requires body to end with exactly one trailing NUL
// and returns everything before it.
func decodeNulString(body []byte) (string, error) {
	if len(body) == 0 || body[len(body)-1] != 0 {
		return "", fmt.Errorf("%w: string field is not NUL-terminated", ErrInvalidPacket)
	}
	return string(body[:len(body)-1]), nil
}

// ---------------------------------------------------------------------
// EnterTtyMode — client->server.
// ---------------------------------------------------------------------

type EnterTtyMode struct {
	Ttys   []uint32
	Driver []byte
}

func (EnterTtyMode) Type() PacketType { return TypeEnterTtyMode }

func (e EnterTtyMode) encode() []byte {
	out := make([]byte, 0, 8+4*len(e.Ttys)+len(e.Driver))
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.Ttys)))
	for _, tty := range e.Ttys {
		out = binary.BigEndian.AppendUint32(out, tty)
	}
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.Driver)))
	out = append(out, e.Driver...)
	return out
}

func decodeEnterTtyMode(body []byte) (Payload, error) {
	r := reader{buf: body}
	ttysLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	ttys := make([]uint32, 0, ttysLen)
	for i := uint32(0); i < ttysLen; i++ {
		tty, err := r.u32()
		if err != nil {
			return nil, err
		}
		ttys = append(ttys, tty)
	}
	driverLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	driver, err := r.bytesN(int(driverLen))
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: EnterTtyMode carries trailing bytes", ErrInvalidPacket)
	}
	return EnterTtyMode{Ttys: ttys, Driver: driver}, nil
}

// ---------------------------------------------------------------------
// SetFocus — 4 bytes.
// ---------------------------------------------------------------------

type SetFocus struct {
	Tty uint32
}

func (SetFocus) Type() PacketType { return TypeSetFocus }

func (s SetFocus) encode() []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], s.Tty)
	return b[:]
}

func decodeSetFocus(body []byte) (Payload, error) {
	r := reader{buf: body}
	tty, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: SetFocus carries trailing bytes", ErrInvalidPacket)
	}
	return SetFocus{Tty: tty}, nil
}

// ---------------------------------------------------------------------
// LeaveTtyMode — empty.
// ---------------------------------------------------------------------

type LeaveTtyMode struct{}

func (LeaveTtyMode) Type() PacketType { return TypeLeaveTtyMode }
func (LeaveTtyMode) encode() []byte   { return nil }

func decodeLeaveTtyMode(body []byte) (Payload, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: LeaveTtyMode carries a body", ErrInvalidPacket)
	}
	return LeaveTtyMode{}, nil
}

// ---------------------------------------------------------------------
// IgnoreKeyRanges / AcceptKeyRanges — lists of (u64,u64) ranges.
// ---------------------------------------------------------------------

type KeyRange struct {
	Low  uint64
	High uint64
}

type IgnoreKeyRanges struct {
	Ranges []KeyRange
}

func (IgnoreKeyRanges) Type() PacketType { return TypeIgnoreKeyRanges }
func (i IgnoreKeyRanges) encode() []byte { return encodeKeyRanges(i.Ranges) }

func decodeIgnoreKeyRanges(body []byte) (Payload, error) {
	ranges, err := decodeKeyRanges(body)
	if err != nil {
		return nil, err
	}
	return IgnoreKeyRanges{Ranges: ranges}, nil
}

type AcceptKeyRanges struct {
	Ranges []KeyRange
}

func (AcceptKeyRanges) Type() PacketType { return TypeAcceptKeyRanges }
func (a AcceptKeyRanges) encode() []byte { return encodeKeyRanges(a.Ranges) }

func decodeAcceptKeyRanges(body []byte) (Payload, error) {
	ranges, err := decodeKeyRanges(body)
	if err != nil {
		return nil, err
	}
	return AcceptKeyRanges{Ranges: ranges}, nil
}

func encodeKeyRanges(ranges []KeyRange) []byte {
	out := make([]byte, 0, 16*len(ranges))
	for _, rg := range ranges {
		out = binary.BigEndian.AppendUint64(out, rg.Low)
		out = binary.BigEndian.AppendUint64(out, rg.High)
	}
	return out
}

func decodeKeyRanges(body []byte) ([]KeyRange, error) {
	if len(body)%16 != 0 {
		return nil, fmt.Errorf("%w: key range list length %d not a multiple of 16", ErrInvalidPacket, len(body))
	}
	r := reader{buf: body}
	ranges := make([]KeyRange, 0, len(body)/16)
	for r.remaining() > 0 {
		low, err := r.u64()
		if err != nil {
			return nil, err
		}
		high, err := r.u64()
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, KeyRange{Low: low, High: high})
	}
	return ranges, nil
}

// ---------------------------------------------------------------------
// EnterRawMode / SuspendDriver — fixed magic prefix then a driver name.
// ---------------------------------------------------------------------

type EnterRawMode struct {
	Driver []byte
}

func (EnterRawMode) Type() PacketType { return TypeEnterRawMode }
func (e EnterRawMode) encode() []byte { return encodeRawModePayload(e.Driver) }

func decodeEnterRawMode(body []byte) (Payload, error) {
	driver, err := decodeRawModePayload(body)
	if err != nil {
		return nil, err
	}
	return EnterRawMode{Driver: driver}, nil
}

type SuspendDriver struct {
	Driver []byte
}

func (SuspendDriver) Type() PacketType { return TypeSuspendDriver }
func (s SuspendDriver) encode() []byte { return encodeRawModePayload(s.Driver) }

func decodeSuspendDriver(body []byte) (Payload, error) {
	driver, err := decodeRawModePayload(body)
	if err != nil {
		return nil, err
	}
	return SuspendDriver{Driver: driver}, nil
}

func encodeRawModePayload(driver []byte) []byte {
	out := make([]byte, 0, 8+1+len(driver))
	out = binary.BigEndian.AppendUint64(out, rawModeMagic)
	out = append(out, byte(len(driver)))
	out = append(out, driver...)
	return out
}

func decodeRawModePayload(body []byte) ([]byte, error) {
	r := reader{buf: body}
	magic, err := r.u64()
	if err != nil {
		return nil, err
	}
	if magic != rawModeMagic {
		return nil, fmt.Errorf("%w: bad raw-mode magic %#x", ErrInvalidPacket, magic)
	}
	driverLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	driver, err := r.bytesN(int(driverLen))
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: raw-mode payload carries trailing bytes", ErrInvalidPacket)
	}
	return driver, nil
}

// ---------------------------------------------------------------------
// LeaveRawMode / ResumeDriver / Synchronize — empty.
// ---------------------------------------------------------------------

type LeaveRawMode struct{}

func (LeaveRawMode) Type() PacketType { return TypeLeaveRawMode }
func (LeaveRawMode) encode() []byte   { return nil }

func decodeLeaveRawMode(body []byte) (Payload, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: LeaveRawMode carries a body", ErrInvalidPacket)
	}
	return LeaveRawMode{}, nil
}

type ResumeDriver struct{}

func (ResumeDriver) Type() PacketType { return TypeResumeDriver }
func (ResumeDriver) encode() []byte   { return nil }

func decodeResumeDriver(body []byte) (Payload, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: ResumeDriver carries a body", ErrInvalidPacket)
	}
	return ResumeDriver{}, nil
}

type Synchronize struct{}

func (Synchronize) Type() PacketType { return TypeSynchronize }
func (Synchronize) encode() []byte   { return nil }

func decodeSynchronize(body []byte) (Payload, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: Synchronize carries a body", ErrInvalidPacket)
	}
	return Synchronize{}, nil
}

// ---------------------------------------------------------------------
// ParameterRequest / ParameterValue / ParameterUpdate.
// ---------------------------------------------------------------------

type ParameterRequest struct {
	Flags        ParameterRequestFlags
	Parameter    uint32
	SubParameter uint64
}

func (ParameterRequest) Type() PacketType { return TypeParameterRequest }

func (p ParameterRequest) encode() []byte {
	out := make([]byte, 0, 16)
	out = binary.BigEndian.AppendUint32(out, uint32(p.Flags))
	out = binary.BigEndian.AppendUint32(out, p.Parameter)
	out = binary.BigEndian.AppendUint64(out, p.SubParameter)
	return out
}

func decodeParameterRequest(body []byte) (Payload, error) {
	r := reader{buf: body}
	flags, err := r.u32()
	if err != nil {
		return nil, err
	}
	parameter, err := r.u32()
	if err != nil {
		return nil, err
	}
	sub, err := r.u64()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: ParameterRequest carries trailing bytes", ErrInvalidPacket)
	}
	return ParameterRequest{Flags: ParameterRequestFlags(flags), Parameter: parameter, SubParameter: sub}, nil
}

// parameterValueData is the shared layout of ParameterValue and
// ParameterUpdate; only the magic differs.
type parameterValueData struct {
	Flags        ParameterValueFlags
	Parameter    uint32
	SubParameter uint64
	Value        []byte
}

func (p parameterValueData) encode() []byte {
	out := make([]byte, 0, 16+len(p.Value))
	out = binary.BigEndian.AppendUint32(out, uint32(p.Flags))
	out = binary.BigEndian.AppendUint32(out, p.Parameter)
	out = binary.BigEndian.AppendUint64(out, p.SubParameter)
	out = append(out, p.Value...)
	return out
}

func decodeParameterValueData(body []byte) (parameterValueData, error) {
	r := reader{buf: body}
	flags, err := r.u32()
	if err != nil {
		return parameterValueData{}, err
	}
	parameter, err := r.u32()
	if err != nil {
		return parameterValueData{}, err
	}
	sub, err := r.u64()
	if err != nil {
		return parameterValueData{}, err
	}
	return parameterValueData{
		Flags:        ParameterValueFlags(flags),
		Parameter:    parameter,
		SubParameter: sub,
		Value:        r.rest(),
	}, nil
}

type ParameterValue struct{ parameterValueData }

func (ParameterValue) Type() PacketType { return TypeParameterValue }

func decodeParameterValue(body []byte) (Payload, error) {
	d, err := decodeParameterValueData(body)
	if err != nil {
		return nil, err
	}
	return ParameterValue{d}, nil
}

type ParameterUpdate struct{ parameterValueData }

func (ParameterUpdate) Type() PacketType { return TypeParameterUpdate }

func decodeParameterUpdate(body []byte) (Payload, error) {
	d, err := decodeParameterValueData(body)
	if err != nil {
		return nil, err
	}
	return ParameterUpdate{d}, nil
}

// ---------------------------------------------------------------------
// Packet — opaque passthrough (raw-mode / suspended-driver bytes).
// ---------------------------------------------------------------------

type OpaquePacket struct {
	Payload []byte
}

func (OpaquePacket) Type() PacketType { return TypePacket }
func (o OpaquePacket) encode() []byte { return o.Payload }

func decodeOpaquePacket(body []byte) (Payload, error) {
	return OpaquePacket{Payload: cloneBytes(body)}, nil
}

// ---------------------------------------------------------------------
// Write — client->server, flag-driven optional fields.
// ---------------------------------------------------------------------

type Write struct {
	HasDisplayNumber bool
	DisplayNumber    uint32

	HasRegion    bool
	RegionStart  uint32
	RegionLength uint32

	HasText bool
	Text    []byte

	HasAnd bool
	And    []byte

	HasOr bool
	Or    []byte

	HasCursor bool
	Cursor    uint32

	HasCharset bool
	Charset    []byte
}

func (Write) Type() PacketType { return TypeWrite }

func (w Write) flags() WriteFlags {
	var f WriteFlags
	if w.HasDisplayNumber {
		f |= WriteFlagDisplayNumber
	}
	if w.HasRegion {
		f |= WriteFlagRegion
	}
	if w.HasText {
		f |= WriteFlagText
	}
	if w.HasAnd {
		f |= WriteFlagAnd
	}
	if w.HasOr {
		f |= WriteFlagOr
	}
	if w.HasCursor {
		f |= WriteFlagCursor
	}
	if w.HasCharset {
		f |= WriteFlagCharset
	}
	return f
}

func (w Write) encode() []byte {
	out := make([]byte, 0, 32+len(w.Text)+len(w.And)+len(w.Or)+len(w.Charset))
	out = binary.BigEndian.AppendUint32(out, uint32(w.flags()))
	if w.HasDisplayNumber {
		out = binary.BigEndian.AppendUint32(out, w.DisplayNumber)
	}
	if w.HasRegion {
		out = binary.BigEndian.AppendUint32(out, w.RegionStart)
		out = binary.BigEndian.AppendUint32(out, w.RegionLength)
	}
	if w.HasText {
		out = binary.BigEndian.AppendUint32(out, uint32(len(w.Text)))
		out = append(out, w.Text...)
	}
	if w.HasAnd {
		out = append(out, w.And...)
	}
	if w.HasOr {
		out = append(out, w.Or...)
	}
	if w.HasCursor {
		out = binary.BigEndian.AppendUint32(out, w.Cursor)
	}
	if w.HasCharset {
		out = binary.BigEndian.AppendUint32(out, uint32(len(w.Charset)))
		out = append(out, w.Charset...)
	}
	return out
}

func decodeWrite(body []byte) (Payload, error) {
	r := reader{buf: body}
	rawFlags, err := r.u32()
	if err != nil {
		return nil, err
	}
	flags := WriteFlags(rawFlags)
	w := Write{}

	if flags&WriteFlagDisplayNumber != 0 {
		w.HasDisplayNumber = true
		if w.DisplayNumber, err = r.u32(); err != nil {
			return nil, err
		}
	}
	if flags&WriteFlagRegion != 0 {
		w.HasRegion = true
		if w.RegionStart, err = r.u32(); err != nil {
			return nil, err
		}
		if w.RegionLength, err = r.u32(); err != nil {
			return nil, err
		}
	}
	if flags&WriteFlagText != 0 {
		w.HasText = true
		textLen, err := r.u32()
		if err != nil {
			return nil, err
		}
		if w.Text, err = r.bytesN(int(textLen)); err != nil {
			return nil, err
		}
	}
	if (flags&WriteFlagAnd != 0 || flags&WriteFlagOr != 0) && flags&WriteFlagRegion == 0 {
		return nil, fmt.Errorf("%w: Write And/Or set without Region", ErrInvalidPacket)
	}
	if flags&WriteFlagAnd != 0 {
		w.HasAnd = true
		if w.And, err = r.bytesN(int(w.RegionLength)); err != nil {
			return nil, err
		}
	}
	if flags&WriteFlagOr != 0 {
		w.HasOr = true
		if w.Or, err = r.bytesN(int(w.RegionLength)); err != nil {
			return nil, err
		}
	}
	if flags&WriteFlagCursor != 0 {
		w.HasCursor = true
		if w.Cursor, err = r.u32(); err != nil {
			return nil, err
		}
	}
	if flags&WriteFlagCharset != 0 {
		w.HasCharset = true
		charsetLen, err := r.u32()
		if err != nil {
			return nil, err
		}
		if w.Charset, err = r.bytesN(int(charsetLen)); err != nil {
			return nil, err
		}
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: Write carries %d trailing bytes", ErrInvalidPacket, r.remaining())
	}
	return w, nil
}
