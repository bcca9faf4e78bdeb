package hederaid

import (
	"errors"
	"strings"
	"testing"
)

func TestParseEVMAddress_LongZeroWithPrefix(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0x0000000000000000000000000000000000000001", "0.0.1"},
		{"0x00000000000000000000000000000000000a1b2c", "0.0.662316"},
		{"0x0000000000000000000000000000000000068cda", "0.0.429274"},
		{"0x00000001000000000000000200000000000003e8", "1.2.1000"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			id, err := ParseEVMAddress(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.String() != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, id.String())
			}
		})
	}
}

func TestParseEVMAddress_ShortAndUnprefixed(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0", "0.0.0"},
		{"a", "0.0.10"},
		{"0x3e8", "0.0.1000"},
		{"68cda", "0.0.429274"},
		{"0X68CDA", "0.0.429274"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			id, err := ParseEVMAddress(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.String() != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, id.String())
			}
		})
	}
}

func TestParseEVMAddress_Invalid(t *testing.T) {
	tests := []string{
		"",
		"0x",
		"not_hex",
		"0xGHI",
		"0x" + strings.Repeat("1", 41),
		"0x12 34",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParseEVMAddress(input)
			if err == nil {
				t.Fatalf("expected error for invalid input: %q", input)
			}
			if !errors.Is(err, ErrInvalidEVMAddress) {
				t.Errorf("expected ErrInvalidEVMAddress, got %v", err)
			}
		})
	}
}

func TestParseEVMAddress_Deterministic(t *testing.T) {
	input := "0x00000000000000000000000000000000004d2f1a"
	first, err := ParseEVMAddress(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ParseEVMAddress(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("expected %s, got %s", first, again)
		}
	}
}

func TestID_EVMAddressRoundTrip(t *testing.T) {
	ids := []ID{
		{},
		{Num: 429274},
		{Shard: 1, Realm: 2, Num: 3},
		{Shard: 0xffffffff, Realm: 1 << 40, Num: 1<<63 + 5},
	}

	for _, id := range ids {
		t.Run(id.String(), func(t *testing.T) {
			parsed, err := ParseEVMAddress(id.EVMAddress().Hex())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if parsed != id {
				t.Errorf("expected %s, got %s", id, parsed)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    ID
		wantErr bool
	}{
		{input: "0.0.429274", want: ID{Num: 429274}},
		{input: " 1.2.3 ", want: ID{Shard: 1, Realm: 2, Num: 3}},
		{input: "0.0", wantErr: true},
		{input: "0.0.x", wantErr: true},
		{input: "-1.0.5", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidID) {
					t.Errorf("expected ErrInvalidID, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseID() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseLongZeroAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		shard   uint32
		realm   uint64
		want    ID
		wantErr bool
	}{
		{name: "long-zero", input: "0x0000000000000000000000000000000000001234", want: ID{Num: 0x1234}},
		{name: "short form", input: "0x1234", want: ID{Num: 0x1234}},
		{name: "other network", input: ID{Shard: 1, Realm: 2, Num: 3}.EVMAddress().Hex(), shard: 1, realm: 2, want: ID{Shard: 1, Realm: 2, Num: 3}},
		{name: "ecdsa alias", input: "0x7a3b5C1f0e8d2a4b6c9d0e1f2a3b4c5d6e7f8a9b", wantErr: true},
		{name: "wrong realm", input: ID{Realm: 1, Num: 3}.EVMAddress().Hex(), wantErr: true},
		{name: "wrong shard", input: ID{Shard: 1, Num: 3}.EVMAddress().Hex(), wantErr: true},
		{name: "not hex", input: "0xzz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLongZeroAddress(tt.input, tt.shard, tt.realm)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLongZeroAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEVMAddress) {
					t.Errorf("expected ErrInvalidEVMAddress, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseLongZeroAddress() = %s, want %s", got, tt.want)
			}
		})
	}
}
