package model

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
)

// Amount is a quantity in the smallest unit of its asset. Amounts are never
// floating point.
type Amount uint64

// Height is a block height on either the native chain or a counter chain.
type Height uint64

// Asset is a supported counter asset. The set is closed, extend it only by
// adding a new variant and wiring a bridge for it.
type Asset string

const (
	Bitcoin  Asset = "bitcoin"
	Litecoin Asset = "litecoin"
	Qtum     Asset = "qtum"
	Ethereum Asset = "ethereum"
)

// Assets lists every supported counter asset.
func Assets() []Asset {
	return []Asset{Bitcoin, Litecoin, Qtum, Ethereum}
}

func (a Asset) Valid() bool {
	switch a {
	case Bitcoin, Litecoin, Qtum, Ethereum:
		return true
	default:
		return false
	}
}

func (a Asset) IsBTC() bool {
	return a == Bitcoin || a == Litecoin || a == Qtum
}

func (a Asset) IsEVM() bool {
	return a == Ethereum
}

// Params returns the chain params used for address decoding. Only Bitcoin has
// btcd params, the other utxo chains share its encoding rules closely enough
// for the validation we do here.
func (a Asset) Params() *chaincfg.Params {
	return &chaincfg.MainNetParams
}

// ValidateAddress checks an address against the asset's encoding rules.
func ValidateAddress(asset Asset, address string) error {
	switch {
	case asset.IsEVM():
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid evm (%v) address: %v", asset, address)
		}
		return nil
	case asset == Bitcoin:
		_, err := btcutil.DecodeAddress(address, asset.Params())
		return err
	case asset.IsBTC():
		if address == "" {
			return fmt.Errorf("empty %v address", asset)
		}
		return nil
	default:
		return fmt.Errorf("unknown asset: %v", asset)
	}
}

// TxStatus mirrors the wallet core's transaction status. It is only ever
// changed by applying a snapshot from the wallet core.
type TxStatus int

const (
	StatusPending TxStatus = iota
	StatusInProgress
	StatusRegistering
	StatusCompleted
	StatusCancelled
	StatusFailed
	StatusExpired
)

func (s TxStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in progress"
	case StatusRegistering:
		return "registering"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SwapState is the swap protocol's internal state. The graph is mostly linear
// with two terminal branches, redeem on success and refund on failure. Not
// every state applies to both protocol sides.
type SwapState int

const (
	StateInitial SwapState = iota
	StateBuildingNativeLock
	StateBuildingNativeRefund
	StateBuildingNativeRedeem
	StateHandlingCounterContract
	StateSendingNativeLock
	StateSendingCounterRedeem
	StateSendingNativeRedeem
	StateSendingCounterRefund
	StateSendingNativeRefund
)

// ChangeAction describes a delta delivered by the wallet core.
type ChangeAction int

const (
	ActionReset ChangeAction = iota
	ActionAdded
	ActionRemoved
	ActionUpdated
)

func (a ChangeAction) String() string {
	switch a {
	case ActionReset:
		return "reset"
	case ActionAdded:
		return "added"
	case ActionRemoved:
		return "removed"
	case ActionUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// SwapOffer is an offer advertised on the board. Offers are immutable once
// published, status changes arrive as transaction deltas or as a remove plus
// re-add, never as an offer update.
type SwapOffer struct {
	ID          string `json:"id"`
	PublisherID string `json:"publisher_id,omitempty"`

	Asset         Asset  `json:"asset"`
	NativeAmount  Amount `json:"native_amount"`
	CounterAmount Amount `json:"counter_amount"`

	// IsNativeSide is true when the publisher sends the native asset.
	IsNativeSide bool `json:"is_native_side"`
	IsOwn        bool `json:"is_own"`

	MinHeight      Height `json:"min_height"`
	ResponseHeight Height `json:"response_height"`

	Status TxStatus `json:"status"`
}

// ExpiryHeight is the native height at which the offer auto cancels.
func (o SwapOffer) ExpiryHeight() Height {
	return o.MinHeight + o.ResponseHeight
}

// SendsNative reports whether accepting this offer means the local wallet
// sends the native asset. The publisher's side is flipped for foreign offers.
func (o SwapOffer) SendsNative() bool {
	if o.IsOwn {
		return !o.IsNativeSide
	}
	return o.IsNativeSide
}

// Validate rejects offers that must never enter the board. A foreign offer
// without a publisher id did not pass validation on the publishing side.
func (o SwapOffer) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("offer without id")
	}
	if !o.IsOwn && o.PublisherID == "" {
		return fmt.Errorf("offer %v has no publisher id", o.ID)
	}
	if !o.Asset.Valid() {
		return fmt.Errorf("offer %v has unknown asset %v", o.ID, o.Asset)
	}
	return nil
}

// SwapTransaction is the subset of a swap transaction's state consumed by the
// board and the lifecycle projector. It is only mutated by replacing the whole
// snapshot with one delivered by the wallet core.
type SwapTransaction struct {
	ID           string   `json:"id"`
	Asset        Asset    `json:"asset"`
	IsNativeSide bool     `json:"is_native_side"`
	Status       TxStatus `json:"status"`

	// State is absent until the peer side of the negotiation is observed.
	State *SwapState `json:"state,omitempty"`

	MinHeight      Height `json:"min_height"`
	ResponseHeight Height `json:"response_height"`

	MinRefundHeight *Height `json:"min_refund_height,omitempty"`
	MaxLockHeight   *Height `json:"max_lock_height,omitempty"`

	// Counter chain leg, present once observed.
	CounterHeight   *Height `json:"counter_height,omitempty"`
	CounterLockTime *Height `json:"counter_lock_time,omitempty"`

	RedeemRegistered bool `json:"redeem_registered"`
	RefundRegistered bool `json:"refund_registered"`

	LockConfirmations uint32 `json:"lock_confirmations"`
}

func (t SwapTransaction) IsPending() bool {
	return t.Status == StatusPending
}

// IsActive reports whether the transaction counts towards the per-asset
// active swap counters: past the initial pending phase but not terminal.
func (t SwapTransaction) IsActive() bool {
	return t.Status == StatusInProgress || t.Status == StatusRegistering
}

func (t SwapTransaction) IsCancellable() bool {
	return t.Status == StatusPending || t.Status == StatusInProgress
}

func (t SwapTransaction) IsDeletable() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled || t.Status == StatusFailed
}

func (t SwapTransaction) IsExpired() bool {
	return t.Status == StatusExpired
}

// ConfirmationsDisplay caps the lock confirmations at the chain's minimum,
// formatted as "n/min". With no minimum configured it is the raw count.
func (t SwapTransaction) ConfirmationsDisplay(minConfirmations uint32) string {
	if minConfirmations == 0 {
		return fmt.Sprintf("%d", t.LockConfirmations)
	}
	n := t.LockConfirmations
	if n > minConfirmations {
		n = minConfirmations
	}
	return fmt.Sprintf("%d/%d", n, minConfirmations)
}
