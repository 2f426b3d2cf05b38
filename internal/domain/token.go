package domain

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address identifies a ledger account. User accounts use the hex form of their
// ObjectID; system accounts use a fixed name.
type Address string

const (
	// TreasuryAddress receives the genesis supply and CRUSH spent in the rewards store.
	TreasuryAddress Address = "treasury"
	// RewardsStoreAddress is the spender users approve before paying with CRUSH.
	RewardsStoreAddress Address = Address(PrincipalRewards)
)

// Principals are in-process callers allowed to perform privileged ledger operations.
const (
	PrincipalCore    = "core"
	PrincipalRewards = "rewards"
	PrincipalAdmin   = "admin"
)

// TokenDecimals is the number of decimals of the CRUSH token.
const TokenDecimals = 18

var (
	ErrInvalidAmountFormat = errors.New("invalid token amount")
	ErrInvalidAddress      = errors.New("invalid ledger address")

	unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
)

func AddressOf(id primitive.ObjectID) Address {
	return Address(id.Hex())
}

// ParseAddress accepts a user ObjectID hex or one of the system accounts.
func ParseAddress(s string) (Address, error) {
	switch a := Address(strings.TrimSpace(s)); a {
	case TreasuryAddress, RewardsStoreAddress:
		return a, nil
	default:
		if _, err := primitive.ObjectIDFromHex(string(a)); err != nil {
			return "", ErrInvalidAddress
		}
		return a, nil
	}
}

// UserID returns the ObjectID behind a user address.
func (a Address) UserID() (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(string(a))
	return id, err == nil
}

// CRUSH converts a whole token count to base units.
func CRUSH(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit)
}

// WholeCRUSH truncates base units to whole tokens.
func WholeCRUSH(amount *big.Int) int64 {
	if amount == nil {
		return 0
	}
	return new(big.Int).Quo(amount, unit).Int64()
}

// FormatCRUSH renders base units as a decimal token string ("150", "0.5").
func FormatCRUSH(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	q, r := new(big.Int).QuoRem(abs, unit, new(big.Int))
	out := q.String()
	if r.Sign() != 0 {
		frac := r.String()
		frac = strings.Repeat("0", TokenDecimals-len(frac)) + frac
		out += "." + strings.TrimRight(frac, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseCRUSH parses a decimal token string into base units.
func ParseCRUSH(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, ErrInvalidAmountFormat
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && (frac == "" || len(frac) > TokenDecimals) {
		return nil, ErrInvalidAmountFormat
	}
	if whole == "" {
		whole = "0"
	}
	w, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, ErrInvalidAmountFormat
	}
	out := new(big.Int).Mul(w, unit)
	if hasFrac {
		f, ok := new(big.Int).SetString(frac+strings.Repeat("0", TokenDecimals-len(frac)), 10)
		if !ok {
			return nil, ErrInvalidAmountFormat
		}
		out.Add(out, f)
	}
	return out, nil
}

// TokenAccount is the ledger state of one address.
type TokenAccount struct {
	Address      Address    `json:"address"`
	Balance      *big.Int   `json:"balance"`
	TotalEarned  *big.Int   `json:"totalEarned"` // minted through workout rewards
	Streak       int        `json:"streak"`
	LastRewardAt *time.Time `json:"lastRewardAt,omitempty"`
}

// NewTokenAccount returns an empty account for addr.
func NewTokenAccount(addr Address) *TokenAccount {
	return &TokenAccount{Address: addr, Balance: new(big.Int), TotalEarned: new(big.Int)}
}

// Supply tracks the minted total against the cap.
type Supply struct {
	Total *big.Int `json:"total"`
	Cap   *big.Int `json:"cap"`
}
