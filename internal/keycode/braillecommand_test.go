package keycode

import "testing"

func TestBrailleCommandZeroArgRoundTrip(t *testing.T) {
	for _, op := range []Opcode{OpNoOp, OpTop, OpBottomLeft, OpPanLeft, OpQuit, 100, MaxOpcode} {
		code, err := EncodeBrailleCommand(BrailleCommand{Opcode: op})
		if err != nil {
			t.Fatalf("Encode(%v): %v", op, err)
		}
		got, err := DecodeBrailleCommand(code)
		if err != nil {
			t.Fatalf("Decode(%#x): %v", code, err)
		}
		if got.ArgOpcode != 0 || got.Opcode != op {
			t.Fatalf("round trip mismatch for %v: got %+v", op, got)
		}
	}
}

func TestBrailleCommandZeroArgOutOfRange(t *testing.T) {
	if _, err := EncodeBrailleCommand(BrailleCommand{Opcode: MaxOpcode + 1}); err == nil {
		t.Fatal("expected ErrUnknownOpcode for opcode beyond 156")
	}
	if _, err := DecodeBrailleCommand(uint32(MaxOpcode + 1)); err == nil {
		t.Fatal("expected ErrUnknownOpcode decoding opcode beyond 156")
	}
}

func TestBrailleCommandArgRoundTrip(t *testing.T) {
	for arg := range argOpcodeNames {
		kind, _ := ParamKindFor(arg)
		bc := BrailleCommand{ArgOpcode: arg}
		if kind == ParamColumnRange {
			bc.StartColumn, bc.EndColumn = 5, 37
		} else {
			bc.Param = 1234
		}
		code, err := EncodeBrailleCommand(bc)
		if err != nil {
			t.Fatalf("Encode(%v): %v", arg, err)
		}
		got, err := DecodeBrailleCommand(code)
		if err != nil {
			t.Fatalf("Decode(%#x): %v", code, err)
		}
		if got != bc {
			t.Fatalf("round trip mismatch for %v: want %+v, got %+v", arg, bc, got)
		}
	}
}

func TestBrailleCommandCopyAppendColumnPair(t *testing.T) {
	bc := BrailleCommand{ArgOpcode: ArgCopy, StartColumn: 3, EndColumn: 9}
	code, err := EncodeBrailleCommand(bc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if code != uint32(ArgCopy)<<16|uint32(3)<<8|9 {
		t.Fatalf("unexpected encoding %#x", code)
	}
}

func TestBrailleCommandUnknownArgOpcode(t *testing.T) {
	code := uint32(99) << 16 // 99 is outside 1..=23
	if _, err := DecodeBrailleCommand(code); err == nil {
		t.Fatal("expected ErrUnknownOpcode for arg opcode 99")
	}
}
