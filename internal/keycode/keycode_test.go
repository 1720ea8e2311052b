package keycode

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []Keycode{
		{Code: 0, Kind: KindKeysym, Flags: 0},
		{Code: 0x1FFFFFFF, Kind: KindBrailleCommand, Flags: 0xFFFFFFFF},
		{Code: 0x123, Kind: KindBrailleCommand, Flags: FlagShift | FlagControl},
		{Code: 42, Kind: KindKeysym, Flags: FlagMeta | FlagAltGr},
	}
	for _, c := range cases {
		word := Pack(c)
		got, err := Unpack(word)
		if err != nil {
			t.Fatalf("Unpack(%#x): %v", word, err)
		}
		if got != c {
			t.Fatalf("round trip mismatch: packed %+v, got %+v", c, got)
		}
	}
}

// TestUnpackInvalidKind exercises the deliberate deviation from the
// source's decoder: any kind bits other than 0 or 1 are rejected
// instead of being folded into BrailleCommand.
func TestUnpackInvalidKind(t *testing.T) {
	word := uint64(5) << 29 // kind = 5
	if _, err := Unpack(word); err == nil {
		t.Fatal("expected ErrInvalidKind, got nil")
	}
}

// TestScenarioS6Keycode matches the literal byte-exact scenario: pack
// (code=0x123, kind=BrailleCommand, flags=Shift|Control) and check the
// 64-bit wire word.
func TestScenarioS6Keycode(t *testing.T) {
	c := Keycode{Code: 0x123, Kind: KindBrailleCommand, Flags: FlagShift | FlagControl}
	word := Pack(c)
	const want = uint64(0x0000000520000123)
	if word != want {
		t.Fatalf("Pack() = %#016x, want %#016x", word, want)
	}
	got, err := Unpack(word)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got != c {
		t.Fatalf("Unpack(%#x) = %+v, want %+v", word, got, c)
	}
}

func TestAliasedFlagsShareBits(t *testing.T) {
	if FlagModifier1 != FlagMeta {
		t.Fatal("Modifier1 and Meta must alias the same bit")
	}
	if FlagModifier2 != FlagAltGr {
		t.Fatal("Modifier2 and AltGr must alias the same bit")
	}
	if FlagToggleOn != FlagRelease {
		t.Fatal("ToggleOn and Release must alias the same bit")
	}
}
