package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ReceiptKind names the operation a receipt was issued for.
type ReceiptKind string

const (
	ReceiptTransfer     ReceiptKind = "transfer"
	ReceiptApprove      ReceiptKind = "approve"
	ReceiptMint         ReceiptKind = "mint"
	ReceiptWorkout      ReceiptKind = "workout"
	ReceiptNFTMint      ReceiptKind = "nft_mint"
	ReceiptRedeemCRUSH  ReceiptKind = "redeem_crush"
	ReceiptRedeemNFT    ReceiptKind = "redeem_nft"
	ReceiptRegistration ReceiptKind = "register"
	ReceiptOracleData   ReceiptKind = "oracle_data"
)

// Receipt identifies one state change.
type Receipt struct {
	TxHash string      `json:"txHash"`
	Kind   ReceiptKind `json:"kind"`
	At     time.Time   `json:"at"`
}

// NewReceipt hashes the operation kind, its fields and a random nonce with Keccak-256.
func NewReceipt(kind ReceiptKind, at time.Time, fields ...string) Receipt {
	nonce := uuid.New()
	payload := string(kind) + "|" + at.UTC().Format(time.RFC3339Nano) + "|" + strings.Join(fields, "|")
	hash := crypto.Keccak256Hash([]byte(payload), nonce[:])
	return Receipt{TxHash: hash.Hex(), Kind: kind, At: at.UTC()}
}

// IsTxHash reports whether s looks like a receipt hash.
func IsTxHash(s string) bool {
	return len(s) == 2+2*common.HashLength && strings.HasPrefix(s, "0x")
}
