package board

import (
	"go.uber.org/zap"

	"github.com/catalogfi/swapboard/pkg/model"
)

// activeSwapTracker counts, per counter asset, the swap transactions in an
// active state. The id table makes insert and remove idempotent, so replayed
// deltas never skew a counter.
type activeSwapTracker struct {
	logger   *zap.Logger
	counters map[model.Asset]uint32
	assets   map[string]model.Asset
}

func newActiveSwapTracker(logger *zap.Logger) *activeSwapTracker {
	return &activeSwapTracker{
		logger:   logger,
		counters: map[model.Asset]uint32{},
		assets:   map[string]model.Asset{},
	}
}

func (t *activeSwapTracker) reset(txs []model.SwapTransaction) {
	t.counters = map[model.Asset]uint32{}
	t.assets = map[string]model.Asset{}
	for _, tx := range txs {
		if tx.IsActive() {
			t.insert(tx)
		}
	}
}

func (t *activeSwapTracker) add(txs []model.SwapTransaction) {
	for _, tx := range txs {
		if tx.IsActive() {
			t.insert(tx)
		}
	}
}

func (t *activeSwapTracker) remove(txs []model.SwapTransaction) {
	for _, tx := range txs {
		t.erase(tx.ID)
	}
}

// update handles transactions moving in either direction, into an active
// state or out of one.
func (t *activeSwapTracker) update(txs []model.SwapTransaction) {
	for _, tx := range txs {
		if tx.IsActive() {
			t.insert(tx)
		} else {
			t.erase(tx.ID)
		}
	}
}

func (t *activeSwapTracker) insert(tx model.SwapTransaction) {
	if _, ok := t.assets[tx.ID]; ok {
		return
	}
	t.assets[tx.ID] = tx.Asset
	t.counters[tx.Asset]++
}

func (t *activeSwapTracker) erase(id string) {
	asset, ok := t.assets[id]
	if !ok {
		return
	}
	delete(t.assets, id)
	if t.counters[asset] == 0 {
		// Never happens while the id table is consistent, clamp instead
		// of underflowing.
		t.logger.Error("active swap counter underflow", zap.String("asset", string(asset)))
		return
	}
	t.counters[asset]--
}

func (t *activeSwapTracker) count(asset model.Asset) uint32 {
	return t.counters[asset]
}

func (t *activeSwapTracker) total() int {
	return len(t.assets)
}
