package board_test

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/catalogfi/swapboard/pkg/board"
	"github.com/catalogfi/swapboard/pkg/chainclient"
	"github.com/catalogfi/swapboard/pkg/lifecycle"
	"github.com/catalogfi/swapboard/pkg/model"
	"github.com/catalogfi/swapboard/pkg/wallet"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeCore struct {
	mu        sync.Mutex
	height    model.Height
	stamp     time.Time
	cancelled []string
	deleted   []string
	published []model.SwapOffer
}

func (c *fakeCore) GetSwapOffers()   {}
func (c *fakeCore) GetTransactions() {}

func (c *fakeCore) CurrentHeight() model.Height {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *fakeCore) CurrentHeightTimestamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stamp
}

func (c *fakeCore) CancelTx(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, id)
}

func (c *fakeCore) DeleteTx(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, id)
}

func (c *fakeCore) PublishOffer(offer model.SwapOffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, offer)
}

func (c *fakeCore) cancelledIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.cancelled...)
}

type fakeChain struct {
	mu       sync.Mutex
	status   chainclient.Status
	balance  model.Amount
	settings chainclient.Settings
}

func (c *fakeChain) Status() chainclient.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeChain) Balance() model.Amount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

func (c *fakeChain) Settings() chainclient.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *fakeChain) set(status chainclient.Status, balance model.Amount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.balance = balance
}

var _ = Describe("Offer board", func() {
	var (
		core  *fakeCore
		btc   *fakeChain
		ltc   *fakeChain
		b     *board.Board
		queue chan<- any
	)

	connected := func(balance model.Amount) *fakeChain {
		return &fakeChain{
			status:  chainclient.StatusConnected,
			balance: balance,
			settings: chainclient.Settings{
				Activated:        true,
				MinConfirmations: 6,
				BlocksPerHour:    6,
			},
		}
	}

	foreignOffer := func(id string, asset model.Asset, nativeSide bool, native, counter model.Amount) model.SwapOffer {
		return model.SwapOffer{
			ID:            id,
			PublisherID:   "peer-1",
			Asset:         asset,
			NativeAmount:  native,
			CounterAmount: counter,
			IsNativeSide:  nativeSide,

			MinHeight:      1000,
			ResponseHeight: 1440,

			Status: model.StatusPending,
		}
	}

	BeforeEach(func() {
		core = &fakeCore{height: 1200, stamp: time.Unix(1700000000, 0)}
		btc = connected(10_0000_0000)
		ltc = connected(5_0000_0000)
		b = board.New(core, map[model.Asset]board.ChainView{
			model.Bitcoin:  btc,
			model.Litecoin: ltc,
		}, nil, zap.NewNop())
		b.Start()
		queue = b.Queue()
		DeferCleanup(b.Stop)

		queue <- wallet.BalanceEvent{Available: 10_0000_0000}
	})

	Context("applying offer deltas", func() {
		It("should replace the set on reset and apply adds and removes", func() {
			offerA := foreignOffer("offer-a", model.Bitcoin, true, 1_0000_0000, 2000_0000)
			offerB := foreignOffer("offer-b", model.Litecoin, false, 1_0000_0000, 2_0000_0000)

			queue <- wallet.OffersEvent{Action: model.ActionReset, Offers: []model.SwapOffer{offerA}}
			Eventually(func() int { return len(b.Offers()) }).Should(Equal(1))

			queue <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{offerB}}
			Eventually(func() int { return len(b.Offers()) }).Should(Equal(2))

			queue <- wallet.OffersEvent{Action: model.ActionRemoved, Offers: []model.SwapOffer{offerA}}
			Eventually(func() int { return len(b.Offers()) }).Should(Equal(1))
			Expect(b.Offers()[0].ID).To(Equal("offer-b"))
		})

		It("should never admit a foreign offer without a publisher id", func() {
			invalid := foreignOffer("offer-x", model.Bitcoin, true, 1_0000_0000, 2000_0000)
			invalid.PublisherID = ""

			queue <- wallet.OffersEvent{Action: model.ActionReset, Offers: nil}
			queue <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{invalid}}

			Consistently(func() int { return len(b.Offers()) }, "100ms").Should(BeZero())
		})

		It("should not duplicate an offer added twice", func() {
			offer := foreignOffer("offer-a", model.Bitcoin, true, 1_0000_0000, 2000_0000)
			queue <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{offer}}
			queue <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{offer}}

			Eventually(func() int { return len(b.Offers()) }).Should(Equal(1))
			Consistently(func() int { return len(b.Offers()) }, "100ms").Should(Equal(1))
		})

		It("should attach a wallclock expiry estimate", func() {
			offer := foreignOffer("offer-a", model.Bitcoin, true, 1_0000_0000, 2000_0000)
			queue <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{offer}}

			Eventually(func() []board.Offer { return b.Offers() }).ShouldNot(BeEmpty())
			entry := b.Offers()[0]
			// 1000 + 1440 - 1200 = 1240 native blocks ahead of the anchor.
			Expect(entry.ExpiresAt).To(Equal(time.Unix(1700000000+1240*60, 0)))
		})
	})

	Context("deciding feasibility", func() {
		It("should include a send-native offer once the native balance covers it", func() {
			offer := foreignOffer("offer-a", model.Bitcoin, true, 5_0000_0000, 2000_0000)
			queue <- wallet.BalanceEvent{Available: 3_0000_0000}
			queue <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{offer}}

			Eventually(func() int { return len(b.Offers()) }).Should(Equal(1))
			Consistently(func() int { return len(b.FeasibleOffers()) }, "100ms").Should(BeZero())

			// No reset needed, the balance event alone re-admits it.
			queue <- wallet.BalanceEvent{Available: 6_0000_0000}
			Eventually(func() int { return len(b.FeasibleOffers()) }).Should(Equal(1))
		})

		It("should always include our own offers", func() {
			own := model.SwapOffer{
				ID:           "offer-own",
				Asset:        model.Bitcoin,
				NativeAmount: 100_0000_0000,
				IsOwn:        true,
				MinHeight:    1000,
			}
			queue <- wallet.BalanceEvent{Available: 0}
			queue <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{own}}

			Eventually(func() int { return len(b.FeasibleOffers()) }).Should(Equal(1))
		})

		It("should gate sending the counter asset on balance and connectivity", func() {
			// The viewer receives native and sends 2 ltc.
			offer := foreignOffer("offer-a", model.Litecoin, false, 1_0000_0000, 2_0000_0000)
			queue <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{offer}}

			Eventually(func() int { return len(b.FeasibleOffers()) }).Should(Equal(1))

			// Losing connectivity zeroes the usable balance.
			ltc.set(chainclient.StatusFailed, 5_0000_0000)
			queue <- chainclient.Event{Asset: model.Litecoin, Kind: chainclient.EventStatus, Status: chainclient.StatusFailed}
			Eventually(func() int { return len(b.FeasibleOffers()) }).Should(BeZero())
		})

		It("should gate receiving the counter asset on connectivity alone", func() {
			// The viewer sends native and receives btc, the btc balance is
			// irrelevant but the client must be connected. This asymmetry is
			// deliberate, it pins current wallet behaviour.
			offer := foreignOffer("offer-a", model.Bitcoin, true, 1_0000_0000, 50_0000_0000)
			queue <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{offer}}

			btc.set(chainclient.StatusConnected, 0)
			queue <- chainclient.Event{Asset: model.Bitcoin, Kind: chainclient.EventBalance, Balance: 0}
			Eventually(func() int { return len(b.FeasibleOffers()) }).Should(Equal(1))

			btc.set(chainclient.StatusConnecting, 0)
			queue <- chainclient.Event{Asset: model.Bitcoin, Kind: chainclient.EventStatus, Status: chainclient.StatusConnecting}
			Eventually(func() int { return len(b.FeasibleOffers()) }).Should(BeZero())
		})

		It("should never consider a deactivated chain fit", func() {
			inactive := &fakeChain{
				status:   chainclient.StatusConnected,
				balance:  100_0000_0000,
				settings: chainclient.Settings{Activated: false},
			}
			b2 := board.New(core, map[model.Asset]board.ChainView{model.Qtum: inactive}, nil, zap.NewNop())
			b2.Start()
			DeferCleanup(b2.Stop)

			queue2 := b2.Queue()
			queue2 <- wallet.BalanceEvent{Available: 10_0000_0000}
			queue2 <- wallet.OffersEvent{Action: model.ActionAdded, Offers: []model.SwapOffer{
				foreignOffer("offer-q", model.Qtum, false, 1_0000_0000, 1_0000_0000),
			}}

			Eventually(func() int { return len(b2.Offers()) }).Should(Equal(1))
			Consistently(func() int { return len(b2.FeasibleOffers()) }, "100ms").Should(BeZero())
		})
	})

	Context("tracking active swaps", func() {
		activeTx := func(id string, asset model.Asset) model.SwapTransaction {
			return model.SwapTransaction{ID: id, Asset: asset, Status: model.StatusInProgress}
		}

		It("should count per asset across deltas", func() {
			queue <- wallet.TransactionsEvent{Action: model.ActionReset, Transactions: []model.SwapTransaction{
				activeTx("tx-1", model.Bitcoin),
				activeTx("tx-2", model.Bitcoin),
				activeTx("tx-3", model.Litecoin),
				{ID: "tx-4", Asset: model.Bitcoin, Status: model.StatusPending},
			}}

			Eventually(func() uint32 { return b.ActiveSwapCount(model.Bitcoin) }).Should(Equal(uint32(2)))
			Expect(b.ActiveSwapCount(model.Litecoin)).To(Equal(uint32(1)))
			Expect(b.ActiveSwapTotal()).To(Equal(3))

			completed := activeTx("tx-1", model.Bitcoin)
			completed.Status = model.StatusCompleted
			queue <- wallet.TransactionsEvent{Action: model.ActionUpdated, Transactions: []model.SwapTransaction{completed}}

			Eventually(func() uint32 { return b.ActiveSwapCount(model.Bitcoin) }).Should(Equal(uint32(1)))
			Expect(b.ActiveSwapTotal()).To(Equal(2))
		})
	})

	Context("projecting lifecycle status", func() {
		It("should use the chain's block rate for counter refunds", func() {
			state := model.StateSendingCounterRefund
			counterHeight := model.Height(800000)
			lockTime := model.Height(800006)
			queue <- wallet.TransactionsEvent{Action: model.ActionAdded, Transactions: []model.SwapTransaction{{
				ID:              "tx-1",
				Asset:           model.Bitcoin,
				Status:          model.StatusInProgress,
				State:           &state,
				CounterHeight:   &counterHeight,
				CounterLockTime: &lockTime,
			}}}

			Eventually(func() bool {
				_, ok := b.LifecycleStatus("tx-1")
				return ok
			}).Should(BeTrue())

			message, _ := b.LifecycleStatus("tx-1")
			Expect(message.Key).To(Equal(lifecycle.KeyRefundCountdown))
			Expect(message.TimeLeft).To(Equal(time.Hour))
		})

		It("should report nothing for unknown transactions", func() {
			_, ok := b.LifecycleStatus("missing")
			Expect(ok).To(BeFalse())
		})
	})

	Context("forwarding commands", func() {
		It("should hand cancels to the wallet core", func() {
			b.CancelOffer("offer-1")
			b.CancelTx("tx-1")
			Expect(core.cancelledIDs()).To(Equal([]string{"offer-1", "tx-1"}))
		})

		It("should refuse to publish an invalid offer", func() {
			err := b.PublishOffer(model.SwapOffer{ID: "offer-1", Asset: model.Asset("dogecoin"), IsOwn: true})
			Expect(err).To(HaveOccurred())
			Expect(core.published).To(BeEmpty())
		})
	})
})
