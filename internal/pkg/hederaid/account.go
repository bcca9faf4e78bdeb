// Package hederaid converts between EVM-style hex addresses and Hedera entity IDs.
//
// Hedera exposes every account, token and contract under a "long-zero" EVM
// address: the 20 address bytes are the big-endian shard (4 bytes), realm
// (8 bytes) and entity number (8 bytes). The mirror node reports transfers
// using the dotted shard.realm.num form, so wallet addresses must be mapped
// to that form before they can be compared.
package hederaid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidEVMAddress is returned when an address is not 1-40 hex digits.
var ErrInvalidEVMAddress = errors.New("invalid EVM address")

// ErrInvalidID is returned when a dotted entity ID cannot be parsed.
var ErrInvalidID = errors.New("invalid hedera entity ID")

// ID identifies a Hedera entity (account, token or contract).
type ID struct {
	Shard uint32
	Realm uint64
	Num   uint64
}

// String returns the dotted shard.realm.num form used by the mirror node.
func (id ID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Shard, id.Realm, id.Num)
}

// IsZero reports whether id is 0.0.0.
func (id ID) IsZero() bool {
	return id == ID{}
}

// EVMAddress returns the long-zero EVM address of the entity.
func (id ID) EVMAddress() common.Address {
	var addr common.Address
	binary.BigEndian.PutUint32(addr[0:4], id.Shard)
	binary.BigEndian.PutUint64(addr[4:12], id.Realm)
	binary.BigEndian.PutUint64(addr[12:20], id.Num)
	return addr
}

// ParseEVMAddress converts a hex address to a Hedera entity ID.
// Handles "0x" prefixed and non-prefixed input; inputs shorter than 40 hex
// digits are left-padded with zeros.
func ParseEVMAddress(address string) (ID, error) {
	raw := strings.TrimSpace(address)
	raw = strings.TrimPrefix(raw, "0x")
	raw = strings.TrimPrefix(raw, "0X")

	if raw == "" || len(raw) > 2*common.AddressLength {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidEVMAddress, address)
	}

	padded := strings.Repeat("0", 2*common.AddressLength-len(raw)) + raw
	b, err := hex.DecodeString(padded)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidEVMAddress, address)
	}

	addr := common.BytesToAddress(b)
	return ID{
		Shard: binary.BigEndian.Uint32(addr[0:4]),
		Realm: binary.BigEndian.Uint64(addr[4:12]),
		Num:   binary.BigEndian.Uint64(addr[12:20]),
	}, nil
}

// ParseLongZeroAddress is ParseEVMAddress restricted to entities of the given
// shard and realm. Any other 20-byte value, such as the ECDSA alias of a
// wallet, carries no entity ID in its bytes and is rejected with
// ErrInvalidEVMAddress.
func ParseLongZeroAddress(address string, shard uint32, realm uint64) (ID, error) {
	id, err := ParseEVMAddress(address)
	if err != nil {
		return ID{}, err
	}
	if id.Shard != shard || id.Realm != realm {
		return ID{}, fmt.Errorf("%w: %q is not a long-zero address in %d.%d", ErrInvalidEVMAddress, address, shard, realm)
	}
	return id, nil
}

// ParseID parses the dotted shard.realm.num form.
func ParseID(s string) (ID, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	shard, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return ID{}, fmt.Errorf("%w: shard of %q", ErrInvalidID, s)
	}
	realm, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("%w: realm of %q", ErrInvalidID, s)
	}
	num, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("%w: num of %q", ErrInvalidID, s)
	}

	return ID{Shard: uint32(shard), Realm: realm, Num: num}, nil
}
