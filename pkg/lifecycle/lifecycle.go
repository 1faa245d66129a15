// Package lifecycle maps a swap transaction snapshot plus current chain
// heights to a user facing status message. Results are structured keys with
// parameters, formatting and translation belong to the presentation layer.
package lifecycle

import (
	"time"

	"github.com/catalogfi/swapboard/pkg/deadline"
	"github.com/catalogfi/swapboard/pkg/model"
)

// Key identifies the message template to render.
type Key string

const (
	// Nobody accepted the offer yet, it auto cancels when the response
	// window closes.
	KeyWaitingPeer Key = "swap-state-initial"

	// Swap is running normally, TimeLeft bounds the expected completion.
	KeyInProgress Key = "swap-state-in-progress"

	// The peer has not signed the lock transaction yet, the negotiation
	// deadline is ahead.
	KeyNegotiation Key = "swap-state-negotiation"

	// The swap failed and the refund becomes claimable in TimeLeft on
	// the Asset chain.
	KeyRefundCountdown Key = "swap-state-refund-countdown"

	// The refund transaction is registered, funds are on the way back.
	KeyRefunding Key = "swap-state-refunding"
)

// Message is the structured projection result.
type Message struct {
	Key Key `json:"key"`

	// TimeLeft is zero for messages without a countdown.
	TimeLeft time.Duration `json:"time_left,omitempty"`

	// Asset names the refund source chain for the refund countdown.
	Asset model.Asset `json:"asset,omitempty"`
}

// Project computes the lifecycle message for a transaction given the current
// native chain height. counterBlocksPerHour is the block rate of the
// transaction's counter asset, zero when unknown. The second return is false
// when there is nothing actionable to show.
func Project(tx model.SwapTransaction, nativeHeight model.Height, counterBlocksPerHour float64) (Message, bool) {
	if tx.Status != model.StatusPending && tx.Status != model.StatusInProgress {
		return Message{}, false
	}

	if tx.State == nil || *tx.State == model.StateInitial {
		return waitingPeer(tx, nativeHeight)
	}

	switch *tx.State {
	case model.StateBuildingNativeLock,
		model.StateBuildingNativeRefund,
		model.StateBuildingNativeRedeem,
		model.StateHandlingCounterContract,
		model.StateSendingNativeLock,
		model.StateSendingCounterRedeem,
		model.StateSendingNativeRedeem:
		return inProgress(tx, nativeHeight)
	case model.StateSendingCounterRefund, model.StateSendingNativeRefund:
		return refunding(tx, nativeHeight, counterBlocksPerHour)
	default:
		return Message{}, false
	}
}

func waitingPeer(tx model.SwapTransaction, nativeHeight model.Height) (Message, bool) {
	delta := int64(tx.MinHeight) + int64(tx.ResponseHeight) - int64(nativeHeight)
	left, ok := deadline.NativeBlocksToDuration(delta)
	if !ok {
		return Message{}, false
	}
	return Message{Key: KeyWaitingPeer, TimeLeft: left}, true
}

func inProgress(tx model.SwapTransaction, nativeHeight model.Height) (Message, bool) {
	if tx.RedeemRegistered {
		return Message{}, false
	}

	if tx.MinRefundHeight != nil && nativeHeight < *tx.MinRefundHeight {
		left, ok := deadline.NativeBlocksToDuration(int64(*tx.MinRefundHeight) - int64(nativeHeight))
		if !ok {
			return Message{}, false
		}
		return Message{Key: KeyInProgress, TimeLeft: left}, true
	}

	if tx.MaxLockHeight != nil && nativeHeight < *tx.MaxLockHeight {
		left, ok := deadline.NativeBlocksToDuration(int64(*tx.MaxLockHeight) - int64(nativeHeight))
		if !ok {
			return Message{}, false
		}
		return Message{Key: KeyNegotiation, TimeLeft: left}, true
	}

	return Message{}, false
}

func refunding(tx model.SwapTransaction, nativeHeight model.Height, counterBlocksPerHour float64) (Message, bool) {
	if tx.RefundRegistered {
		return Message{Key: KeyRefunding}, true
	}

	if *tx.State == model.StateSendingNativeRefund {
		if tx.MinRefundHeight == nil || nativeHeight >= *tx.MinRefundHeight {
			return Message{}, false
		}
		left, ok := deadline.NativeBlocksToDuration(int64(*tx.MinRefundHeight) - int64(nativeHeight))
		if !ok {
			return Message{}, false
		}
		return Message{Key: KeyRefundCountdown, TimeLeft: left, Asset: ""}, true
	}

	// Counter chain refund, the deadline lives on the counter chain and has
	// to be converted to native blocks first.
	if tx.CounterHeight == nil || tx.CounterLockTime == nil {
		return Message{}, false
	}
	if *tx.CounterHeight >= *tx.CounterLockTime {
		return Message{}, false
	}
	blocks, ok := deadline.CrossChainBlocks(
		int64(*tx.CounterLockTime)-int64(*tx.CounterHeight),
		counterBlocksPerHour,
		deadline.NativeTargetSeconds,
	)
	if !ok {
		return Message{}, false
	}
	left, ok := deadline.NativeBlocksToDuration(blocks)
	if !ok {
		return Message{}, false
	}
	return Message{Key: KeyRefundCountdown, TimeLeft: left, Asset: tx.Asset}, true
}
