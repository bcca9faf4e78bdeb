package entity

import (
	"strings"
	"testing"
)

func TestNewUser(t *testing.T) {
	tests := []struct {
		name        string
		wallet      string
		want        string
		wantErr     bool
		errContains string
	}{
		{
			name:   "checksummed wallet is lowercased",
			wallet: "0x52908400098527886E0F7030069857D2E4169EE7",
			want:   "0x52908400098527886e0f7030069857d2e4169ee7",
		},
		{
			name:   "surrounding whitespace",
			wallet: "  0x0000000000000000000000000000000000068cda ",
			want:   "0x0000000000000000000000000000000000068cda",
		},
		{
			name:   "no prefix",
			wallet: "0000000000000000000000000000000000068cda",
			want:   "0x0000000000000000000000000000000000068cda",
		},
		{name: "empty", wallet: "", wantErr: true, errContains: "invalid wallet address"},
		{name: "too short", wallet: "0x68cda", wantErr: true, errContains: "invalid wallet address"},
		{name: "not hex", wallet: "0xZZ08400098527886E0F7030069857D2E4169EE7", wantErr: true, errContains: "invalid wallet address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUser(tt.wallet)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewUser() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewUser() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if u.Wallet != tt.want {
				t.Errorf("NewUser().Wallet = %s, want %s", u.Wallet, tt.want)
			}
		})
	}
}
