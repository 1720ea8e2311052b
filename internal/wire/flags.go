package wire

// WriteFlags marks which optional fields are present in a Write packet's
// payload, in declaration order. The encoder computes this word from
// which fields are set; the decoder uses it to know which fields follow.
type WriteFlags uint32

const (
	WriteFlagDisplayNumber WriteFlags = 1 << 0
	WriteFlagRegion        WriteFlags = 1 << 1
	WriteFlagText          WriteFlags = 1 << 2
	WriteFlagAnd           WriteFlags = 1 << 3
	WriteFlagOr            WriteFlags = 1 << 4
	WriteFlagCursor        WriteFlags = 1 << 5
	WriteFlagCharset       WriteFlags = 1 << 6
)

// ParameterRequestFlags controls a ParameterRequest's subscription and
// scope semantics.
type ParameterRequestFlags uint32

const (
	ParamReqFlagGlobal      ParameterRequestFlags = 1
	ParamReqFlagIncludeSelf ParameterRequestFlags = 1 << 1
	ParamReqFlagGet         ParameterRequestFlags = 1 << 8
	ParamReqFlagSubscribe   ParameterRequestFlags = 1 << 9
	ParamReqFlagUnsubscribe ParameterRequestFlags = 1 << 10
)

// ParameterValueFlags controls a ParameterValue/ParameterUpdate's scope.
type ParameterValueFlags uint32

const ParamValueFlagGlobal ParameterValueFlags = 1

// rawModeMagic prefixes EnterRawMode and SuspendDriver payloads.
const rawModeMagic uint64 = 0xDEADBEEF
