package chainclient

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/catalogfi/blockchain/btc"
	"github.com/catalogfi/swapboard/pkg/model"
)

// ElectrsBridge polls a utxo chain through an electrs indexer.
type ElectrsBridge struct {
	indexer btc.IndexerClient
	address btcutil.Address
}

func NewElectrsBridge(indexer btc.IndexerClient, address btcutil.Address) *ElectrsBridge {
	return &ElectrsBridge{
		indexer: indexer,
		address: address,
	}
}

func (b *ElectrsBridge) Balance(ctx context.Context) (model.Amount, error) {
	utxos, err := b.indexer.GetUTXOs(ctx, b.address)
	if err != nil {
		return 0, err
	}
	total := int64(0)
	for _, utxo := range utxos {
		total += utxo.Amount
	}
	return model.Amount(total), nil
}

func (b *ElectrsBridge) TipHeight(ctx context.Context) (model.Height, error) {
	tip, err := b.indexer.GetTipBlockHeight(ctx)
	if err != nil {
		return 0, err
	}
	return model.Height(tip), nil
}
