package lifecycle_test

import (
	"time"

	"github.com/catalogfi/swapboard/pkg/lifecycle"
	"github.com/catalogfi/swapboard/pkg/model"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func statePtr(state model.SwapState) *model.SwapState {
	return &state
}

func heightPtr(height model.Height) *model.Height {
	return &height
}

var _ = Describe("Lifecycle projection", func() {
	Context("terminal and unknown statuses", func() {
		It("should report nothing for completed transactions", func() {
			tx := model.SwapTransaction{
				Status: model.StatusCompleted,
				State:  statePtr(model.StateSendingNativeRedeem),
			}
			_, ok := lifecycle.Project(tx, 100, 6)
			Expect(ok).To(BeFalse())
		})
	})

	Context("waiting for the counterparty", func() {
		It("should count down the response window", func() {
			tx := model.SwapTransaction{
				Status:         model.StatusPending,
				MinHeight:      1000,
				ResponseHeight: 60,
			}
			message, ok := lifecycle.Project(tx, 1030, 6)
			Expect(ok).To(BeTrue())
			Expect(message.Key).To(Equal(lifecycle.KeyWaitingPeer))
			Expect(message.TimeLeft).To(Equal(30 * time.Minute))
		})

		It("should treat the initial state like an absent one", func() {
			tx := model.SwapTransaction{
				Status:         model.StatusPending,
				State:          statePtr(model.StateInitial),
				MinHeight:      1000,
				ResponseHeight: 60,
			}
			message, ok := lifecycle.Project(tx, 1030, 6)
			Expect(ok).To(BeTrue())
			Expect(message.Key).To(Equal(lifecycle.KeyWaitingPeer))
		})

		It("should go quiet once the window closed", func() {
			tx := model.SwapTransaction{
				Status:         model.StatusPending,
				MinHeight:      1000,
				ResponseHeight: 60,
			}
			_, ok := lifecycle.Project(tx, 1060, 6)
			Expect(ok).To(BeFalse())
		})
	})

	Context("in progress", func() {
		It("should report the completion bound from the refund height", func() {
			tx := model.SwapTransaction{
				Status:          model.StatusInProgress,
				State:           statePtr(model.StateSendingNativeLock),
				MinRefundHeight: heightPtr(1100),
			}
			message, ok := lifecycle.Project(tx, 1040, 6)
			Expect(ok).To(BeTrue())
			Expect(message.Key).To(Equal(lifecycle.KeyInProgress))
			Expect(message.TimeLeft).To(Equal(time.Hour))
		})

		It("should report the negotiation deadline without a refund height", func() {
			tx := model.SwapTransaction{
				Status:        model.StatusInProgress,
				State:         statePtr(model.StateHandlingCounterContract),
				MaxLockHeight: heightPtr(1060),
			}
			message, ok := lifecycle.Project(tx, 1000, 6)
			Expect(ok).To(BeTrue())
			Expect(message.Key).To(Equal(lifecycle.KeyNegotiation))
		})

		It("should go quiet once the redeem leg is registered", func() {
			tx := model.SwapTransaction{
				Status:           model.StatusInProgress,
				State:            statePtr(model.StateSendingNativeRedeem),
				MinRefundHeight:  heightPtr(1100),
				RedeemRegistered: true,
			}
			_, ok := lifecycle.Project(tx, 1000, 6)
			Expect(ok).To(BeFalse())
		})
	})

	Context("refunding", func() {
		It("should count down the native refund window", func() {
			tx := model.SwapTransaction{
				Status:          model.StatusInProgress,
				State:           statePtr(model.StateSendingNativeRefund),
				MinRefundHeight: heightPtr(1000),
			}
			message, ok := lifecycle.Project(tx, 990, 6)
			Expect(ok).To(BeTrue())
			Expect(message.Key).To(Equal(lifecycle.KeyRefundCountdown))
			Expect(message.TimeLeft).To(Equal(10 * time.Minute))
		})

		It("should go quiet once the refund height passed", func() {
			tx := model.SwapTransaction{
				Status:          model.StatusInProgress,
				State:           statePtr(model.StateSendingNativeRefund),
				MinRefundHeight: heightPtr(1000),
			}
			_, ok := lifecycle.Project(tx, 1000, 6)
			Expect(ok).To(BeFalse())
		})

		It("should switch to refunding once the refund leg registers", func() {
			tx := model.SwapTransaction{
				Status:           model.StatusInProgress,
				State:            statePtr(model.StateSendingNativeRefund),
				MinRefundHeight:  heightPtr(1000),
				RefundRegistered: true,
			}
			message, ok := lifecycle.Project(tx, 1000, 6)
			Expect(ok).To(BeTrue())
			Expect(message.Key).To(Equal(lifecycle.KeyRefunding))
			Expect(message.TimeLeft).To(BeZero())
		})

		It("should convert counter chain refund windows to native time", func() {
			tx := model.SwapTransaction{
				Status:          model.StatusInProgress,
				State:           statePtr(model.StateSendingCounterRefund),
				Asset:           model.Bitcoin,
				CounterHeight:   heightPtr(800000),
				CounterLockTime: heightPtr(800006),
			}
			// 6 btc blocks at 6 per hour is an hour, which is 60 native
			// blocks at the 60s target.
			message, ok := lifecycle.Project(tx, 1000, 6)
			Expect(ok).To(BeTrue())
			Expect(message.Key).To(Equal(lifecycle.KeyRefundCountdown))
			Expect(message.Asset).To(Equal(model.Bitcoin))
			Expect(message.TimeLeft).To(Equal(time.Hour))
		})

		It("should treat a zero counter block rate as unknown", func() {
			tx := model.SwapTransaction{
				Status:          model.StatusInProgress,
				State:           statePtr(model.StateSendingCounterRefund),
				Asset:           model.Bitcoin,
				CounterHeight:   heightPtr(800000),
				CounterLockTime: heightPtr(800006),
			}
			_, ok := lifecycle.Project(tx, 1000, 0)
			Expect(ok).To(BeFalse())
		})

		It("should need both counter heights", func() {
			tx := model.SwapTransaction{
				Status:        model.StatusInProgress,
				State:         statePtr(model.StateSendingCounterRefund),
				Asset:         model.Bitcoin,
				CounterHeight: heightPtr(800000),
			}
			_, ok := lifecycle.Project(tx, 1000, 6)
			Expect(ok).To(BeFalse())
		})
	})
})
