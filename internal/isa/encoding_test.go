package isa

import (
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Instruction{
		{Op: OpAdd, A: AllocatableAt(0), B: AllocatableAt(1), C: RegZero},
		{Op: OpAddi, A: AllocatableAt(2), B: RegStackPtr, Imm: 4095},
		{Op: OpMovi, A: AllocatableAt(3), Imm: MaxImm18},
		{Op: OpCfei, Imm: MaxImm24},
		{Op: OpRet, A: RegZero},
		{Op: OpNoop},
	}
	for _, want := range cases {
		raw, err := want.Encode()
		if err != nil {
			t.Fatalf("encode %v: %v", want, err)
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode %v: %v", want, err)
		}
		if got != want {
			t.Errorf("round trip mismatch: want %v, got %v", want, got)
		}
	}
}

func TestEncodeImmediateBounds(t *testing.T) {
	if _, err := (Instruction{Op: OpAddi, A: RegZero, B: RegZero, Imm: MaxImm12 + 1}).Encode(); err == nil {
		t.Error("expected 12-bit immediate overflow error")
	}
	if _, err := (Instruction{Op: OpMovi, A: RegZero, Imm: MaxImm18 + 1}).Encode(); err == nil {
		t.Error("expected 18-bit immediate overflow error")
	}
	if _, err := (Instruction{Op: OpCfei, Imm: MaxImm24 + 1}).Encode(); err == nil {
		t.Error("expected 24-bit immediate overflow error")
	}
}

func TestReservedRegisterNames(t *testing.T) {
	if RegZero.String() != "$zero" {
		t.Errorf("expected $zero, got %s", RegZero)
	}
	if RegFlags.String() != "$flag" {
		t.Errorf("expected $flag, got %s", RegFlags)
	}
	if AllocatableAt(0).String() != "$r0" {
		t.Errorf("expected $r0, got %s", AllocatableAt(0))
	}
	if !AllocatableAt(47).Valid() {
		t.Error("last allocatable register should be valid")
	}
	if AllocatableAt(48).Valid() {
		t.Error("register beyond the file should be invalid")
	}
}
