// Package wire implements the BrlAPI packet codec: a length-prefixed,
// type-tagged, big-endian binary framing with variant-specific payload
// layouts.
//
// Every packet on the wire is [size:u32 BE][type:u32 BE][payload: size
// bytes]. size is the payload length only, never the header. type is one
// of a closed set of four-byte magics (see the PacketType constants
// below); several magics carry a different payload shape depending on
// whether the packet travels client-to-server or server-to-client, so
// decoding takes an explicit Direction.
package wire

import "fmt"

// unknownFmt formats an enum value that has no symbolic name.
const unknownFmt = "Unknown(%d)"

// PacketType identifies the payload shape of a packet by its four-byte
// wire magic, carried as a big-endian u32.
type PacketType uint32

// Packet type magics, network order, per the protocol's registered set.
const (
	TypeAck              PacketType = 0x00000041 // "\0\0\0A"
	TypeError            PacketType = 0x00000065 // "\0\0\0e"
	TypeException        PacketType = 0x00000045 // "\0\0\0E"
	TypeKey              PacketType = 0x0000006B // "\0\0\0k"
	TypeWrite            PacketType = 0x00000077 // "\0\0\0w"
	TypePacket           PacketType = 0x00000070 // "\0\0\0p"
	TypeVersion          PacketType = 0x00000076 // "\0\0\0v"
	TypeAuth             PacketType = 0x00000061 // "\0\0\0a"
	TypeGetDriverName    PacketType = 0x0000006E // "\0\0\0n"
	TypeGetModelID       PacketType = 0x00000064 // "\0\0\0d"
	TypeGetDisplaySize   PacketType = 0x00000073 // "\0\0\0s"
	TypeEnterTtyMode     PacketType = 0x00000074 // "\0\0\0t"
	TypeSetFocus         PacketType = 0x00000046 // "\0\0\0F"
	TypeLeaveTtyMode     PacketType = 0x0000004C // "\0\0\0L"
	TypeIgnoreKeyRanges  PacketType = 0x0000006D // "\0\0\0m"
	TypeAcceptKeyRanges  PacketType = 0x00000075 // "\0\0\0u"
	TypeEnterRawMode     PacketType = 0x0000002A // "\0\0\0*"
	TypeLeaveRawMode     PacketType = 0x00000023 // "\0\0\0#"
	TypeSuspendDriver    PacketType = 0x00000053 // "\0\0\0S"
	TypeResumeDriver     PacketType = 0x00000052 // "\0\0\0R"
	TypeSynchronize      PacketType = 0x0000005A // "\0\0\0Z"
	TypeParameterRequest PacketType = 0x00005052 // "\0\0PR"
	TypeParameterValue   PacketType = 0x00005056 // "\0\0PV"
	TypeParameterUpdate  PacketType = 0x00005055 // "\0\0PU"
)

var packetTypeNames = map[PacketType]string{
	TypeAck:              "Ack",
	TypeError:            "Error",
	TypeException:        "Exception",
	TypeKey:              "Key",
	TypeWrite:            "Write",
	TypePacket:           "Packet",
	TypeVersion:          "Version",
	TypeAuth:             "Auth",
	TypeGetDriverName:    "GetDriverName",
	TypeGetModelID:       "GetModelId",
	TypeGetDisplaySize:   "GetDisplaySize",
	TypeEnterTtyMode:     "EnterTtyMode",
	TypeSetFocus:         "SetFocus",
	TypeLeaveTtyMode:     "LeaveTtyMode",
	TypeIgnoreKeyRanges:  "IgnoreKeyRanges",
	TypeAcceptKeyRanges:  "AcceptKeyRanges",
	TypeEnterRawMode:     "EnterRawMode",
	TypeLeaveRawMode:     "LeaveRawMode",
	TypeSuspendDriver:    "SuspendDriver",
	TypeResumeDriver:     "ResumeDriver",
	TypeSynchronize:      "Synchronize",
	TypeParameterRequest: "ParameterRequest",
	TypeParameterValue:   "ParameterValue",
	TypeParameterUpdate:  "ParameterUpdate",
}

// String returns the packet type's symbolic name, or Unknown(n) for a
// magic outside the registered set.
func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint32(t))
}

// Known reports whether t is one of the registered magics.
func (t PacketType) Known() bool {
	_, ok := packetTypeNames[t]
	return ok
}

// Direction disambiguates the handful of magics that carry different
// payload shapes depending on which side sent them.
type Direction uint8

const (
	// FromClient decodes a packet as the client-to-server shape.
	FromClient Direction = iota
	// FromServer decodes a packet as the server-to-client shape.
	FromServer
)

func (d Direction) String() string {
	if d == FromClient {
		return "client"
	}
	return "server"
}

// AuthType identifies an authentication mechanism, carried as its own
// four-byte magic rather than as a small integer.
type AuthType uint32

const (
	AuthNone        AuthType = 0x0000004E // "\0\0\0N"
	AuthKey         AuthType = 0x0000004B // "\0\0\0K"
	AuthCredentials AuthType = 0x00000043 // "\0\0\0C"
)

var authTypeNames = map[AuthType]string{
	AuthNone:        "None",
	AuthKey:         "Key",
	AuthCredentials: "Credentials",
}

func (a AuthType) String() string {
	if name, ok := authTypeNames[a]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint32(a))
}

// ErrorCode enumerates the 19 protocol error codes (0..=18).
type ErrorCode uint32

const (
	ErrorSuccess               ErrorCode = 0
	ErrorNotEnoughMemory       ErrorCode = 1
	ErrorTtyBusy               ErrorCode = 2
	ErrorDeviceBusy            ErrorCode = 3
	ErrorUnknownInstruction    ErrorCode = 4
	ErrorIllegalInstruction    ErrorCode = 5
	ErrorInvalidParameter      ErrorCode = 6
	ErrorInvalidPacket         ErrorCode = 7
	ErrorConnectionRefused     ErrorCode = 8
	ErrorOperationNotSupported ErrorCode = 9
	ErrorGetAddrInfo           ErrorCode = 10
	ErrorLibcError             ErrorCode = 11
	ErrorUnknownTty            ErrorCode = 12
	ErrorBadProtocolVersion    ErrorCode = 13
	ErrorUnexpectedEOF         ErrorCode = 14
	ErrorEmptyKeyFile          ErrorCode = 15
	ErrorDriverPacketTooLarge  ErrorCode = 16
	ErrorAuthenticationFailed  ErrorCode = 17
	ErrorReadOnlyParameter     ErrorCode = 18
)

var errorCodeNames = [19]string{
	"Success",
	"NotEnoughMemory",
	"TtyBusy",
	"DeviceBusy",
	"UnknownInstruction",
	"IllegalInstruction",
	"InvalidParameter",
	"InvalidPacket",
	"ConnectionRefused",
	"OperationNotSupported",
	"GetAddrInfo",
	"LibcError",
	"UnknownTty",
	"BadProtocolVersion",
	"UnexpectedEof",
	"EmptyKeyFile",
	"DriverPacketTooLarge",
	"AuthenticationFailed",
	"ReadOnlyParameter",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf(unknownFmt, uint32(c))
}

// ProtocolVersion is the BrlAPI handshake version this server speaks.
const ProtocolVersion uint32 = 8
