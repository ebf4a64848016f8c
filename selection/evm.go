package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MaxTopics is the number of indexed topics an EVM log can carry.
const MaxTopics = 4

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrTooManyTopics  = fmt.Errorf("at most %d topic positions are allowed", MaxTopics)
)

// NormalizeEvmAddress returns the lower-case 0x-hex form of a 20-byte address.
func NormalizeEvmAddress(s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// NormalizeContractAddress returns the lower-case 0x-hex form of a 32-byte
// contract account id.
func NormalizeContractAddress(s string) (string, error) {
	addr, err := normalizeHex(s, common.HashLength)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return addr, nil
}

// NormalizeTopic returns the lower-case 0x-hex form of a 32-byte log topic.
func NormalizeTopic(s string) (string, error) {
	return normalizeHex(s, common.HashLength)
}

// NormalizeSighash returns the lower-case 0x-hex form of a 4-byte function
// selector.
func NormalizeSighash(s string) (string, error) {
	return normalizeHex(s, 4)
}

func normalizeHex(s string, size int) (string, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%q: %w", s, err)
	}
	if len(b) != size {
		return "", fmt.Errorf("%q: expected %d bytes, got %d", s, size, len(b))
	}
	return hexutil.Encode(b), nil
}
