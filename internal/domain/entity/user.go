package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// User is a dashboard account identified by its connected wallet.
type User struct {
	ID        int64
	Wallet    string // lowercase 0x-prefixed hex
	Email     *string
	Username  *string
	Credits   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates a new User entity with validation.
func NewUser(wallet string) (*User, error) {
	normalized, err := NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	return &User{Wallet: normalized}, nil
}

// NormalizeWallet validates a 20-byte hex wallet address and returns its
// lowercase 0x-prefixed form.
func NormalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if !common.IsHexAddress(wallet) {
		return "", fmt.Errorf("invalid wallet address: %q", wallet)
	}
	return strings.ToLower(common.HexToAddress(wallet).Hex()), nil
}
