// Package board owns the live swap offer set, the subset the operator can
// currently fill, the swap transaction list and the per-asset active swap
// counters. All state is owned by a single coordinator goroutine fed by one
// ordered event queue, producers never touch it directly.
package board

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/catalogfi/swapboard/pkg/chainclient"
	"github.com/catalogfi/swapboard/pkg/deadline"
	"github.com/catalogfi/swapboard/pkg/lifecycle"
	"github.com/catalogfi/swapboard/pkg/model"
	"github.com/catalogfi/swapboard/pkg/wallet"
)

// ChainView is the read side of a chain client.
type ChainView interface {
	Status() chainclient.Status
	Balance() model.Amount
	Settings() chainclient.Settings
}

// Offer is a board entry, the published offer plus the wallclock expiry
// estimate derived from the native tip at the time it was applied.
type Offer struct {
	model.SwapOffer
	ExpiresAt time.Time `json:"expires_at"`
}

// Board is the coordinator.
type Board struct {
	logger *zap.Logger
	core   wallet.Core
	chains map[model.Asset]ChainView

	queue chan any
	quit  chan struct{}
	wg    sync.WaitGroup

	mu            sync.RWMutex
	nativeBalance model.Amount
	offers        map[string]Offer
	fit           map[string]struct{}
	txs           map[string]model.SwapTransaction
	tracker       *activeSwapTracker
}

// New builds a board reading from the given event queue. The queue is shared
// with the producers, chain clients and the wallet core post into it and only
// the board consumes it.
func New(core wallet.Core, chains map[model.Asset]ChainView, queue chan any, logger *zap.Logger) *Board {
	logger = logger.With(zap.String("service", "board"))
	if queue == nil {
		queue = make(chan any, 128)
	}
	return &Board{
		logger:  logger,
		core:    core,
		chains:  chains,
		queue:   queue,
		quit:    make(chan struct{}),
		offers:  map[string]Offer{},
		fit:     map[string]struct{}{},
		txs:     map[string]model.SwapTransaction{},
		tracker: newActiveSwapTracker(logger),
	}
}

// Queue is where chain clients and the wallet core deliver their events.
func (b *Board) Queue() chan<- any {
	return b.queue
}

// Start spawns the coordinator loop and requests the initial offer and
// transaction sets, which arrive later as Reset deltas. Not blocking.
func (b *Board) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case event := <-b.queue:
				b.apply(event)
			case <-b.quit:
				return
			}
		}
	}()

	b.core.GetSwapOffers()
	b.core.GetTransactions()
}

// Stop tears the coordinator down. Events still queued are dropped, none is
// applied after Stop returns.
func (b *Board) Stop() {
	close(b.quit)
	b.wg.Wait()
}

func (b *Board) apply(event any) {
	switch e := event.(type) {
	case chainclient.Event:
		// Any status or balance move on any chain can change which
		// offers fit, recompute the whole subset.
		b.recomputeFit()
	case wallet.BalanceEvent:
		b.mu.Lock()
		b.nativeBalance = e.Available
		b.mu.Unlock()
		b.recomputeFit()
	case wallet.OffersEvent:
		b.applyOffers(e)
	case wallet.TransactionsEvent:
		b.applyTransactions(e)
	case wallet.HeightEvent:
		// Heights are read on demand from the wallet core, nothing to do.
	default:
		b.logger.Error("unexpected event on board queue", zap.Any("event", event))
	}
}

func (b *Board) applyOffers(event wallet.OffersEvent) {
	entries := make([]Offer, 0, len(event.Offers))
	for _, offer := range event.Offers {
		if err := offer.Validate(); err != nil {
			b.logger.Debug("dropping offer", zap.Error(err))
			continue
		}
		entries = append(entries, Offer{
			SwapOffer: offer,
			ExpiresAt: b.expiryEstimate(offer),
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch event.Action {
	case model.ActionReset:
		b.offers = make(map[string]Offer, len(entries))
		for _, entry := range entries {
			b.offers[entry.ID] = entry
		}
		b.recomputeFitLocked()
	case model.ActionAdded:
		for _, entry := range entries {
			b.offers[entry.ID] = entry
			if b.feasibleLocked(entry.SwapOffer) {
				b.fit[entry.ID] = struct{}{}
			} else {
				delete(b.fit, entry.ID)
			}
		}
	case model.ActionRemoved:
		for _, entry := range entries {
			delete(b.offers, entry.ID)
			delete(b.fit, entry.ID)
		}
	default:
		// Offers are immutable once published, an update is a protocol
		// violation by the wallet core.
		b.logger.Error("illegal offer delta action", zap.String("action", event.Action.String()))
	}
}

func (b *Board) applyTransactions(event wallet.TransactionsEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch event.Action {
	case model.ActionReset:
		b.txs = make(map[string]model.SwapTransaction, len(event.Transactions))
		for _, tx := range event.Transactions {
			b.txs[tx.ID] = tx
		}
		b.tracker.reset(event.Transactions)
	case model.ActionAdded:
		for _, tx := range event.Transactions {
			b.txs[tx.ID] = tx
		}
		b.tracker.add(event.Transactions)
	case model.ActionRemoved:
		for _, tx := range event.Transactions {
			delete(b.txs, tx.ID)
		}
		b.tracker.remove(event.Transactions)
	case model.ActionUpdated:
		for _, tx := range event.Transactions {
			b.txs[tx.ID] = tx
		}
		b.tracker.update(event.Transactions)
	default:
		b.logger.Error("unknown transaction delta action", zap.String("action", event.Action.String()))
	}
}

// recomputeFit re-tests every held offer. It is idempotent and has no side
// effect beyond replacing the fit set, events may arrive in any cross-source
// order.
func (b *Board) recomputeFit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recomputeFitLocked()
}

func (b *Board) recomputeFitLocked() {
	fit := make(map[string]struct{}, len(b.offers))
	for id, offer := range b.offers {
		if b.feasibleLocked(offer.SwapOffer) {
			fit[id] = struct{}{}
		}
	}
	b.fit = fit
}

// feasibleLocked decides whether the operator could accept the offer right
// now. Connectivity gates the legs asymmetrically: sending the counter asset
// needs a balance, which is only trusted while the client is connected, and
// receiving it still needs the connected client to take delivery. This
// mirrors long-standing wallet behaviour, do not symmetrize it without
// product input.
func (b *Board) feasibleLocked(offer model.SwapOffer) bool {
	if offer.IsOwn {
		return true
	}

	if offer.NativeAmount > b.nativeBalance {
		return false
	}

	chain, ok := b.chains[offer.Asset]
	if !ok {
		// Unknown counter asset reaching here is a programming error,
		// degrade to infeasible rather than take the coordinator down.
		b.logger.Error("no chain client for asset", zap.String("asset", string(offer.Asset)))
		return false
	}
	if !chain.Settings().Activated {
		return false
	}

	connected := chain.Status() == chainclient.StatusConnected
	if offer.SendsNative() {
		return connected
	}

	available := model.Amount(0)
	if connected {
		available = chain.Balance()
	}
	return offer.CounterAmount <= available
}

func (b *Board) expiryEstimate(offer model.SwapOffer) time.Time {
	tip := b.core.CurrentHeight()
	stamp := b.core.CurrentHeightTimestamp()
	if tip == 0 || stamp.IsZero() || offer.MinHeight == 0 || offer.ResponseHeight == 0 {
		return time.Time{}
	}
	return deadline.ExpiresAt(stamp, tip, offer.ExpiryHeight())
}

// Offers returns a copy of the full offer set, ordered by id.
func (b *Board) Offers() []Offer {
	b.mu.RLock()
	defer b.mu.RUnlock()

	offers := make([]Offer, 0, len(b.offers))
	for _, offer := range b.offers {
		offers = append(offers, offer)
	}
	sortOffers(offers)
	return offers
}

// FeasibleOffers returns a copy of the fits-balance subset, ordered by id.
func (b *Board) FeasibleOffers() []Offer {
	b.mu.RLock()
	defer b.mu.RUnlock()

	offers := make([]Offer, 0, len(b.fit))
	for id := range b.fit {
		if offer, ok := b.offers[id]; ok {
			offers = append(offers, offer)
		}
	}
	sortOffers(offers)
	return offers
}

// Transactions returns a copy of the tracked swap transactions, ordered by id.
func (b *Board) Transactions() []model.SwapTransaction {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txs := make([]model.SwapTransaction, 0, len(b.txs))
	for _, tx := range b.txs {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	return txs
}

// ActiveSwapCount is the number of active swap transactions for one counter
// asset.
func (b *Board) ActiveSwapCount(asset model.Asset) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tracker.count(asset)
}

// ActiveSwapTotal is the number of active swap transactions across all
// counter assets.
func (b *Board) ActiveSwapTotal() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tracker.total()
}

// LifecycleStatus projects the named transaction's current protocol state to
// a user facing message. The bool is false when the transaction is unknown or
// has nothing actionable to report.
func (b *Board) LifecycleStatus(id string) (lifecycle.Message, bool) {
	b.mu.RLock()
	tx, ok := b.txs[id]
	b.mu.RUnlock()
	if !ok {
		return lifecycle.Message{}, false
	}

	blocksPerHour := float64(0)
	if chain, ok := b.chains[tx.Asset]; ok {
		blocksPerHour = chain.Settings().BlocksPerHour
	}
	return lifecycle.Project(tx, b.core.CurrentHeight(), blocksPerHour)
}

// Confirmations formats the lock confirmations of the named transaction
// against its chain's configured minimum.
func (b *Board) Confirmations(id string) (string, bool) {
	b.mu.RLock()
	tx, ok := b.txs[id]
	b.mu.RUnlock()
	if !ok {
		return "", false
	}

	minConfirmations := uint32(0)
	if chain, ok := b.chains[tx.Asset]; ok {
		minConfirmations = chain.Settings().MinConfirmations
	}
	return tx.ConfirmationsDisplay(minConfirmations), true
}

// CancelOffer withdraws one of our own published offers. The wallet core
// reports the outcome through a later delta.
func (b *Board) CancelOffer(id string) {
	b.logger.Info("cancel offer", zap.String("id", id))
	b.core.CancelTx(id)
}

func (b *Board) CancelTx(id string) {
	b.core.CancelTx(id)
}

func (b *Board) DeleteTx(id string) {
	b.core.DeleteTx(id)
}

// PublishOffer validates and hands a new offer to the wallet core.
func (b *Board) PublishOffer(offer model.SwapOffer) error {
	if err := offer.Validate(); err != nil {
		return err
	}
	b.core.PublishOffer(offer)
	return nil
}

func sortOffers(offers []Offer) {
	sort.Slice(offers, func(i, j int) bool { return offers[i].ID < offers[j].ID })
}
