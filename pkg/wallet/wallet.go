// Package wallet is the boundary to the wallet core, the component that owns
// keys, transaction construction and broadcast. The core is asynchronous:
// commands are fire and forget and results come back as delta events on the
// board's queue.
package wallet

import (
	"time"

	"github.com/catalogfi/swapboard/pkg/model"
)

// OffersEvent is a swap offer set delta. Updated is not a legal action for
// offers, they are immutable once published.
type OffersEvent struct {
	Action model.ChangeAction `json:"action"`
	Offers []model.SwapOffer  `json:"offers"`
}

// TransactionsEvent is a swap transaction set delta. Each transaction is a
// full snapshot, never a partial patch.
type TransactionsEvent struct {
	Action       model.ChangeAction      `json:"action"`
	Transactions []model.SwapTransaction `json:"transactions"`
}

// BalanceEvent reports the wallet's available native balance.
type BalanceEvent struct {
	Available model.Amount `json:"available"`
}

// HeightEvent reports the native chain tip and its timestamp.
type HeightEvent struct {
	Height    model.Height `json:"height"`
	Timestamp int64        `json:"timestamp"`
}

// Core is the command side of the wallet core. GetSwapOffers and
// GetTransactions trigger a later Reset delta, the cancel and delete commands
// surface success only through a subsequent delta.
type Core interface {
	GetSwapOffers()
	GetTransactions()

	CurrentHeight() model.Height
	CurrentHeightTimestamp() time.Time

	CancelTx(id string)
	DeleteTx(id string)
	PublishOffer(offer model.SwapOffer)
}
