package testutil

import "testing"

func TestLongZeroAddress(t *testing.T) {
	tests := []struct {
		num  uint64
		want string
	}{
		{0, "0x0000000000000000000000000000000000000000"},
		{1, "0x0000000000000000000000000000000000000001"},
		{429274, "0x0000000000000000000000000000000000068cda"},
	}
	for _, tt := range tests {
		if got := LongZeroAddress(tt.num); got != tt.want {
			t.Errorf("LongZeroAddress(%d) = %s, want %s", tt.num, got, tt.want)
		}
	}
}
