// Package deadline converts block height deltas into human time estimates.
// All functions are pure and safe to call from any goroutine.
package deadline

import (
	"math"
	"time"

	"github.com/catalogfi/swapboard/pkg/model"
)

const (
	// NativeTargetSeconds is the native chain's target block interval.
	NativeTargetSeconds = 60

	secondsPerHour = 3600

	// Estimates are rounded to a five minute quantum so they do not look
	// misleadingly precise.
	quantumSeconds = 300
)

// BlocksToDuration estimates the wall time covered by delta blocks on a chain
// with the given target block interval. The second return is false when delta
// is not positive, there is no estimate to give.
func BlocksToDuration(delta int64, targetSeconds int64) (time.Duration, bool) {
	if delta <= 0 {
		return 0, false
	}
	seconds := delta * targetSeconds
	seconds = (seconds + quantumSeconds/2) / quantumSeconds * quantumSeconds
	return time.Duration(seconds) * time.Second, true
}

// NativeBlocksToDuration estimates the wall time covered by delta native
// chain blocks.
func NativeBlocksToDuration(delta int64) (time.Duration, bool) {
	return BlocksToDuration(delta, NativeTargetSeconds)
}

// CrossChainBlocks converts a counter chain height delta into the equivalent
// number of native blocks. Refund and lock deadlines on the counter chain are
// compared against native heights upstream, which needs this mixed unit
// conversion. Returns false when blocksPerHour is zero, the conversion is
// undefined and the caller must treat the estimate as unknown.
func CrossChainBlocks(counterDelta int64, counterBlocksPerHour float64, nativeTargetSeconds int64) (int64, bool) {
	if counterBlocksPerHour == 0 || nativeTargetSeconds == 0 {
		return 0, false
	}
	nativePerHour := float64(secondsPerHour) / float64(nativeTargetSeconds)
	blocks := float64(counterDelta) * nativePerHour / counterBlocksPerHour
	return int64(math.Round(blocks)), true
}

// ExpiresAt estimates the wall clock time at which expiryHeight is reached,
// anchored on the timestamp of the current native tip. Heights already in the
// past give a time before the anchor.
func ExpiresAt(tipTime time.Time, tipHeight, expiryHeight model.Height) time.Time {
	if tipHeight <= expiryHeight {
		return tipTime.Add(time.Duration(expiryHeight-tipHeight) * NativeTargetSeconds * time.Second)
	}
	return tipTime.Add(-time.Duration(tipHeight-expiryHeight) * NativeTargetSeconds * time.Second)
}
