package chainclient

import (
	"context"
	"fmt"

	"github.com/catalogfi/swapboard/pkg/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EvmBridge polls an evm chain through a standard json-rpc endpoint.
type EvmBridge struct {
	client  *ethclient.Client
	address common.Address
}

func NewEvmBridge(client *ethclient.Client, address common.Address) *EvmBridge {
	return &EvmBridge{
		client:  client,
		address: address,
	}
}

func (b *EvmBridge) Balance(ctx context.Context) (model.Amount, error) {
	balance, err := b.client.BalanceAt(ctx, b.address, nil)
	if err != nil {
		return 0, err
	}
	if !balance.IsUint64() {
		return 0, fmt.Errorf("balance out of range: %v", balance.String())
	}
	return model.Amount(balance.Uint64()), nil
}

func (b *EvmBridge) TipHeight(ctx context.Context) (model.Height, error) {
	tip, err := b.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return model.Height(tip), nil
}
