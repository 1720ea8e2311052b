package keycode

import (
	"errors"
	"fmt"
)

// MaxOpcode is the highest valid zero-argument opcode value (the closed
// range is 0..=156).
const MaxOpcode = 156

// Opcode is a zero-argument braille command. Only a representative
// subset in the low range carries a symbolic name (the navigation,
// toggle and session vocabulary BRLTTY-style drivers expose); the rest
// of 0..=156 is valid but unassigned — it still round-trips through
// Encode/Decode, it just has no String() name.
type Opcode uint16

const (
	OpNoOp                           Opcode = 0
	OpLineUp                         Opcode = 1
	OpLineDown                       Opcode = 2
	OpSeveralLinesUp                 Opcode = 3
	OpSeveralLinesDown               Opcode = 4
	OpPreviousDifferentLine          Opcode = 5
	OpNextDifferentLine              Opcode = 6
	OpPreviousDifferentAttributeLine Opcode = 7
	OpNextDifferentAttributeLine     Opcode = 8
	OpTop                            Opcode = 9
	OpBottom                         Opcode = 10
	OpTopLeft                        Opcode = 11
	OpBottomLeft                     Opcode = 12
	OpPanLeft                        Opcode = 13
	OpPanRight                       Opcode = 14
	OpWindowLeft                     Opcode = 15
	OpWindowRight                    Opcode = 16
	OpHalfWindowLeft                 Opcode = 17
	OpHalfWindowRight                Opcode = 18
	OpPreferencesMenu                Opcode = 19
	OpPreferencesSave                Opcode = 20
	OpPreferencesLoad                Opcode = 21
	OpHelpScreenToggle               Opcode = 22
	OpLearnModeToggle                Opcode = 23
	OpInfoScreenToggle               Opcode = 24
	OpFreezeDisplayToggle            Opcode = 25
	OpDisplayAttributesToggle        Opcode = 26
	OpSixDotModeToggle               Opcode = 27
	OpSlidingWindowToggle            Opcode = 28
	OpSkipIdenticalLinesToggle       Opcode = 29
	OpSkipBlankWindowsToggle         Opcode = 30
	OpCursorVisibleToggle            Opcode = 31
	OpCursorStyleBlockToggle         Opcode = 32
	OpCursorTrackingToggle           Opcode = 33
	OpAutoRepeatToggle               Opcode = 34
	OpAutoSpeakToggle                Opcode = 35
	OpShowSymbolsToggle              Opcode = 36
	OpTetherCursorToggle             Opcode = 37
	OpRestart                        Opcode = 38
	OpQuit                           Opcode = 39
)

var opcodeNames = map[Opcode]string{
	OpNoOp:                           "NoOp",
	OpLineUp:                         "LineUp",
	OpLineDown:                       "LineDown",
	OpSeveralLinesUp:                 "SeveralLinesUp",
	OpSeveralLinesDown:               "SeveralLinesDown",
	OpPreviousDifferentLine:          "PreviousDifferentLine",
	OpNextDifferentLine:              "NextDifferentLine",
	OpPreviousDifferentAttributeLine: "PreviousDifferentAttributesLine",
	OpNextDifferentAttributeLine:     "NextDifferentAttributesLine",
	OpTop:                            "Top",
	OpBottom:                         "Bottom",
	OpTopLeft:                        "TopLeft",
	OpBottomLeft:                     "BottomLeft",
	OpPanLeft:                        "PanLeft",
	OpPanRight:                       "PanRight",
	OpWindowLeft:                     "WindowLeft",
	OpWindowRight:                    "WindowRight",
	OpHalfWindowLeft:                 "HalfWindowLeft",
	OpHalfWindowRight:                "HalfWindowRight",
	OpPreferencesMenu:                "PreferencesMenu",
	OpPreferencesSave:                "PreferencesSave",
	OpPreferencesLoad:                "PreferencesLoad",
	OpHelpScreenToggle:               "HelpScreenToggle",
	OpLearnModeToggle:                "LearnModeToggle",
	OpInfoScreenToggle:               "InfoScreenToggle",
	OpFreezeDisplayToggle:            "FreezeDisplayToggle",
	OpDisplayAttributesToggle:        "DisplayAttributesToggle",
	OpSixDotModeToggle:               "SixDotModeToggle",
	OpSlidingWindowToggle:            "SlidingWindowToggle",
	OpSkipIdenticalLinesToggle:       "SkipIdenticalLinesToggle",
	OpSkipBlankWindowsToggle:         "SkipBlankWindowsToggle",
	OpCursorVisibleToggle:            "CursorVisibleToggle",
	OpCursorStyleBlockToggle:         "CursorStyleBlockToggle",
	OpCursorTrackingToggle:           "CursorTrackingToggle",
	OpAutoRepeatToggle:               "AutoRepeatToggle",
	OpAutoSpeakToggle:                "AutoSpeakToggle",
	OpShowSymbolsToggle:              "ShowSymbolsToggle",
	OpTetherCursorToggle:             "TetherCursorToggle",
	OpRestart:                        "Restart",
	OpQuit:                           "Quit",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint16(o))
}

// ParamKind identifies what an argument-carrying opcode's parameter
// means.
type ParamKind uint8

const (
	ParamColumn       ParamKind = iota // u16 column index
	ParamRow                           // u16 row index
	ParamTerminal                      // u16 virtual terminal number
	ParamMarkerNumber                  // u16 marker identifier
	ParamHistoryEntry                  // u16 history entry index
	ParamTableIndex                    // u16 table/profile index
	ParamColumnRange                   // (start_column:u8, end_column:u8)
)

// ArgOpcode is an argument-carrying braille command (top 16 bits of the
// 32-bit code, range 1..=23).
type ArgOpcode uint16

const (
	ArgRoute               ArgOpcode = 1
	ArgRouteLine           ArgOpcode = 2
	ArgDescribe            ArgOpcode = 3
	ArgSetLeft             ArgOpcode = 4
	ArgGotoLine            ArgOpcode = 5
	ArgPrevLine            ArgOpcode = 6
	ArgNextLine            ArgOpcode = 7
	ArgSetMarker           ArgOpcode = 8
	ArgGotoMarker          ArgOpcode = 9
	ArgDeleteMarker        ArgOpcode = 10
	ArgSwitchVt            ArgOpcode = 11
	ArgSelectVt            ArgOpcode = 12
	ArgPrevVt              ArgOpcode = 13
	ArgNextVt              ArgOpcode = 14
	ArgPrevHistory         ArgOpcode = 15
	ArgNextHistory         ArgOpcode = 16
	ArgGotoHistory         ArgOpcode = 17
	ArgSetTable            ArgOpcode = 18
	ArgSelectProfile       ArgOpcode = 19
	ArgSetContractionTable ArgOpcode = 20
	ArgSetAttributesTable  ArgOpcode = 21
	ArgCopy                ArgOpcode = 22
	ArgAppend              ArgOpcode = 23
)

var argOpcodeNames = map[ArgOpcode]string{
	ArgRoute:               "Route",
	ArgRouteLine:           "RouteLine",
	ArgDescribe:            "Describe",
	ArgSetLeft:             "SetLeft",
	ArgGotoLine:            "GotoLine",
	ArgPrevLine:            "PrevLine",
	ArgNextLine:            "NextLine",
	ArgSetMarker:           "SetMarker",
	ArgGotoMarker:          "GotoMarker",
	ArgDeleteMarker:        "DeleteMarker",
	ArgSwitchVt:            "SwitchVt",
	ArgSelectVt:            "SelectVt",
	ArgPrevVt:              "PrevVt",
	ArgNextVt:              "NextVt",
	ArgPrevHistory:         "PrevHistory",
	ArgNextHistory:         "NextHistory",
	ArgGotoHistory:         "GotoHistory",
	ArgSetTable:            "SetTable",
	ArgSelectProfile:       "SelectProfile",
	ArgSetContractionTable: "SetContractionTable",
	ArgSetAttributesTable:  "SetAttributesTable",
	ArgCopy:                "Copy",
	ArgAppend:              "Append",
}

var argOpcodeParamKind = map[ArgOpcode]ParamKind{
	ArgRoute:               ParamColumn,
	ArgRouteLine:           ParamRow,
	ArgDescribe:            ParamColumn,
	ArgSetLeft:             ParamColumn,
	ArgGotoLine:            ParamRow,
	ArgPrevLine:            ParamRow,
	ArgNextLine:            ParamRow,
	ArgSetMarker:           ParamMarkerNumber,
	ArgGotoMarker:          ParamMarkerNumber,
	ArgDeleteMarker:        ParamMarkerNumber,
	ArgSwitchVt:            ParamTerminal,
	ArgSelectVt:            ParamTerminal,
	ArgPrevVt:              ParamTerminal,
	ArgNextVt:              ParamTerminal,
	ArgPrevHistory:         ParamHistoryEntry,
	ArgNextHistory:         ParamHistoryEntry,
	ArgGotoHistory:         ParamHistoryEntry,
	ArgSetTable:            ParamTableIndex,
	ArgSelectProfile:       ParamTableIndex,
	ArgSetContractionTable: ParamTableIndex,
	ArgSetAttributesTable:  ParamTableIndex,
	ArgCopy:                ParamColumnRange,
	ArgAppend:              ParamColumnRange,
}

func (a ArgOpcode) String() string {
	if name, ok := argOpcodeNames[a]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint16(a))
}

// ParamKindFor returns the parameter kind an argument-carrying opcode
// expects.
func ParamKindFor(a ArgOpcode) (ParamKind, bool) {
	k, ok := argOpcodeParamKind[a]
	return k, ok
}

// ErrUnknownOpcode is returned when a 32-bit braille-command code does
// not decode to any recognised zero-argument or argument-carrying
// opcode.
var ErrUnknownOpcode = errors.New("keycode: unknown braille command opcode")

// BrailleCommand is the decoded form of a BrailleCommand keycode's
// 32-bit code value. Exactly one of the zero-arg or argument-carrying
// shapes is populated, discriminated by ArgOpcode being zero or not.
type BrailleCommand struct {
	Opcode    Opcode    // valid when ArgOpcode == 0
	ArgOpcode ArgOpcode // 0 means the zero-argument Opcode form

	// Param holds the parameter for every argument-carrying opcode
	// except Copy/Append, which use StartColumn/EndColumn instead.
	Param       uint16
	StartColumn uint8
	EndColumn   uint8
}

// DecodeBrailleCommand interprets a 32-bit BE code value (the
// zero-extended 29-bit Code field of a BrailleCommand keycode).
func DecodeBrailleCommand(code uint32) (BrailleCommand, error) {
	top := uint16(code >> 16)
	low := uint16(code)

	if top == 0 {
		if low > MaxOpcode {
			return BrailleCommand{}, fmt.Errorf("%w: opcode %d", ErrUnknownOpcode, low)
		}
		return BrailleCommand{Opcode: Opcode(low)}, nil
	}

	arg := ArgOpcode(top)
	kind, ok := ParamKindFor(arg)
	if !ok {
		return BrailleCommand{}, fmt.Errorf("%w: arg opcode %d", ErrUnknownOpcode, top)
	}

	bc := BrailleCommand{ArgOpcode: arg}
	if kind == ParamColumnRange {
		bc.StartColumn = uint8(low >> 8)
		bc.EndColumn = uint8(low)
	} else {
		bc.Param = low
	}
	return bc, nil
}

// EncodeBrailleCommand is the inverse of DecodeBrailleCommand.
func EncodeBrailleCommand(bc BrailleCommand) (uint32, error) {
	if bc.ArgOpcode == 0 {
		if bc.Opcode > MaxOpcode {
			return 0, fmt.Errorf("%w: opcode %d", ErrUnknownOpcode, bc.Opcode)
		}
		return uint32(bc.Opcode), nil
	}

	kind, ok := ParamKindFor(bc.ArgOpcode)
	if !ok {
		return 0, fmt.Errorf("%w: arg opcode %d", ErrUnknownOpcode, bc.ArgOpcode)
	}

	var low uint16
	if kind == ParamColumnRange {
		low = uint16(bc.StartColumn)<<8 | uint16(bc.EndColumn)
	} else {
		low = bc.Param
	}
	return uint32(bc.ArgOpcode)<<16 | uint32(low), nil
}
