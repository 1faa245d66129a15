package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/catalogfi/blockchain/btc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/catalogfi/swapboard/daemon/rpc"
	"github.com/catalogfi/swapboard/pkg/board"
	"github.com/catalogfi/swapboard/pkg/chainclient"
	applog "github.com/catalogfi/swapboard/pkg/logger"
	"github.com/catalogfi/swapboard/pkg/model"
	"github.com/catalogfi/swapboard/pkg/store"
	"github.com/catalogfi/swapboard/pkg/wallet"
)

type config struct {
	WalletCoreURL string
	RedisURL      string
	RPCAddr       string
	RPCSecret     string
	LogFile       string

	// Per-asset RPC endpoint and our receive address, comma separated as
	// asset=endpoint and asset=address.
	Endpoints map[model.Asset]string
	Addresses map[model.Asset]string
}

func main() {
	cfg := parseConfig()

	logger, err := applog.New(cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	settingsStore, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis store", zap.Error(err))
	}

	clients, core, b, err := wire(cfg, settingsStore, logger)
	if err != nil {
		logger.Fatal("wire", zap.Error(err))
	}

	for _, client := range clients {
		client.Start()
	}
	core.Start()
	b.Start()

	ctx, cancel := context.WithCancel(context.Background())
	server := rpc.NewServer(b, cfg.RPCSecret, logger)
	go func() {
		if err := server.Run(ctx, cfg.RPCAddr); err != nil {
			logger.Error("rpc server", zap.Error(err))
		}
	}()

	// waiting system signal
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	cancel()
	for _, client := range clients {
		client.Stop()
	}
	core.Stop()
	b.Stop()
}

func wire(cfg config, settingsStore store.SettingsStore, logger *zap.Logger) ([]*chainclient.Client, *wallet.RemoteCore, *board.Board, error) {
	queue := make(chan any, 128)
	core := wallet.NewRemoteCore(cfg.WalletCoreURL, queue, logger)

	clients := make([]*chainclient.Client, 0, len(cfg.Endpoints))
	views := map[model.Asset]board.ChainView{}
	for asset, endpoint := range cfg.Endpoints {
		address, ok := cfg.Addresses[asset]
		if !ok {
			return nil, nil, nil, fmt.Errorf("no address configured for %v", asset)
		}
		bridge, err := newBridge(asset, endpoint, address, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bridge for %v: %v", asset, err)
		}
		client := chainclient.New(asset, bridge, loadSettings(settingsStore, asset), queue, logger)
		clients = append(clients, client)
		views[asset] = client
	}

	b := board.New(core, views, queue, logger)
	return clients, core, b, nil
}

func parseConfig() config {
	return config{
		WalletCoreURL: parseRequiredEnv("WALLET_CORE_URL"),
		RedisURL:      parseRequiredEnv("REDIS_URL"),
		RPCAddr:       parseEnv("RPC_ADDR", ":9014"),
		RPCSecret:     parseRequiredEnv("RPC_SECRET"),
		LogFile:       parseEnv("LOG_FILE", ""),
		Endpoints:     parseAssetMap(parseRequiredEnv("CHAIN_ENDPOINTS")),
		Addresses:     parseAssetMap(parseRequiredEnv("CHAIN_ADDRESSES")),
	}
}

func parseRequiredEnv(name string) string {
	val := os.Getenv(name)
	if val == "" {
		panic(fmt.Sprintf("env '%v' not set", name))
	}
	return val
}

func parseEnv(name, fallback string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return fallback
}

func parseAssetMap(raw string) map[model.Asset]string {
	out := map[model.Asset]string{}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			panic(fmt.Sprintf("malformed asset pair: %v", pair))
		}
		asset := model.Asset(parts[0])
		if !asset.Valid() {
			panic(fmt.Sprintf("unknown asset: %v", parts[0]))
		}
		out[asset] = parts[1]
	}
	return out
}

func newBridge(asset model.Asset, endpoint, address string, logger *zap.Logger) (chainclient.Bridge, error) {
	if err := model.ValidateAddress(asset, address); err != nil {
		return nil, err
	}

	if asset.IsEVM() {
		client, err := ethclient.Dial(endpoint)
		if err != nil {
			return nil, err
		}
		return chainclient.NewEvmBridge(client, common.HexToAddress(address)), nil
	}

	addr, err := btcutil.DecodeAddress(address, asset.Params())
	if err != nil {
		return nil, err
	}
	indexer := btc.NewElectrsIndexerClient(logger, endpoint, btc.DefaultRetryInterval)
	return chainclient.NewElectrsBridge(indexer, addr), nil
}

func loadSettings(settingsStore store.SettingsStore, asset model.Asset) chainclient.Settings {
	settings, err := settingsStore.Settings(asset)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			panic(err)
		}
		return chainclient.Settings{}
	}
	return settings
}
