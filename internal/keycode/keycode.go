// Package keycode packs and unpacks the 64-bit BrlAPI keycode word and
// its nested braille-command sub-encoding.
//
// A keycode is a 64-bit value with three fields, packed least-significant
// first and transmitted as a big-endian 64-bit integer:
//
//	bits [0..29)  code:  u29
//	bits [29..32) kind:  u3   (0 = Keysym, 1 = BrailleCommand)
//	bits [32..64) flags: u32
//
// Use explicit shift/mask on the 64-bit integer rather than any
// structure-layout assumption.
package keycode

import (
	"errors"
	"fmt"
)

const unknownFmt = "Unknown(%d)"

// codeMask isolates the low 29 bits holding Code.
const codeMask = 1<<29 - 1

// Kind discriminates a keycode's low-level meaning.
type Kind uint8

const (
	KindKeysym         Kind = 0
	KindBrailleCommand Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindKeysym:
		return "Keysym"
	case KindBrailleCommand:
		return "BrailleCommand"
	default:
		return fmt.Sprintf(unknownFmt, uint8(k))
	}
}

// Flags holds the keycode modifier/state bits. Several symbolic names
// alias the same bit (Modifier1 == Meta, and so on); treat them as
// alternate spellings, never as distinct bits.
type Flags uint32

const (
	FlagShift        Flags = 1
	FlagUpperCase    Flags = 1 << 1
	FlagControl      Flags = 1 << 2
	FlagModifier1    Flags = 1 << 3
	FlagMeta         Flags = 1 << 3
	FlagModifier2    Flags = 1 << 4
	FlagAltGr        Flags = 1 << 4
	FlagModifier3    Flags = 1 << 5
	FlagGui          Flags = 1 << 5
	FlagModifier4    Flags = 1 << 6
	FlagEscaped      Flags = 1 << 6
	FlagModifier5    Flags = 1 << 7
	FlagCapsLock     Flags = 1 << 7
	FlagToggleOn     Flags = 1 << 8
	FlagRelease      Flags = 1 << 8
	FlagToggleOff    Flags = 1 << 9
	FlagEmulation0   Flags = 1 << 9
	FlagMotionRoute  Flags = 1 << 10
	FlagEmulation1   Flags = 1 << 10
	FlagMotionScaled Flags = 1 << 11
	FlagMotionToLeft Flags = 1 << 12
)

// Keycode is the unpacked form of the wire's 64-bit keycode word.
type Keycode struct {
	Code  uint32 // low 29 bits significant
	Kind  Kind
	Flags Flags
}

// ErrInvalidKind is returned by Unpack when the 3-bit kind field is
// neither 0 (Keysym) nor 1 (BrailleCommand).
//
// The original source's decoder maps any nonzero kind to
// BrailleCommand; this implementation is symmetric-strict instead, so
// that unpack(pack(x)) round-trips for every value it accepts and
// corrupt kind bits are surfaced rather than silently reinterpreted.
var ErrInvalidKind = errors.New("keycode: invalid kind")

// Pack assembles a Keycode into its 64-bit wire word. Code is truncated
// to 29 bits.
func Pack(c Keycode) uint64 {
	return uint64(c.Flags)<<32 | uint64(c.Kind&0x7)<<29 | uint64(c.Code&codeMask)
}

// Unpack reverses Pack. It returns ErrInvalidKind if the 3-bit kind
// field is neither 0 nor 1.
func Unpack(word uint64) (Keycode, error) {
	kind := Kind((word >> 29) & 0x7)
	if kind != KindKeysym && kind != KindBrailleCommand {
		return Keycode{}, fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
	return Keycode{
		Code:  uint32(word & codeMask),
		Kind:  kind,
		Flags: Flags(word >> 32),
	}, nil
}
