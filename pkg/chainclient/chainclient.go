// Package chainclient polls connectivity and balance for one counter asset
// and publishes deduplicated change events to the board's queue.
package chainclient

import (
	"context"
	"sync"
	"time"

	"github.com/catalogfi/swapboard/pkg/model"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often a client refreshes status and balance.
const DefaultPollInterval = 10 * time.Second

// Status is the connectivity state reported by the bridge. Any state may
// revisit Connecting, no ordering is enforced.
type Status int

const (
	StatusUninitialized Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Settings are the per-session chain parameters, read once at construction
// and refreshed only through OnSettingsChanged.
type Settings struct {
	Activated        bool    `json:"activated"`
	MinConfirmations uint32  `json:"min_confirmations"`
	BlocksPerHour    float64 `json:"blocks_per_hour"`
	FeeRate          uint64  `json:"fee_rate"`
}

// Bridge performs the actual RPC calls for one chain. Retry policy lives in
// the bridge, the client only surfaces whatever it is given.
type Bridge interface {
	// Balance returns the spendable balance in the smallest unit.
	Balance(ctx context.Context) (model.Amount, error)

	// TipHeight returns the current chain tip and doubles as the
	// connectivity probe.
	TipHeight(ctx context.Context) (model.Height, error)
}

// EventKind tells which field of a client changed.
type EventKind int

const (
	EventStatus EventKind = iota
	EventBalance
)

// Event is a discrete change notification. Equal values are never re-emitted
// so downstream recomputation does not thrash.
type Event struct {
	Asset   model.Asset
	Kind    EventKind
	Status  Status
	Balance model.Amount
}

// Client owns the polled state for one counter asset.
type Client struct {
	asset  model.Asset
	bridge Bridge
	queue  chan<- any
	logger *zap.Logger

	interval time.Duration
	refresh  chan struct{}
	quit     chan struct{}
	wg       sync.WaitGroup

	mu       sync.RWMutex
	settings Settings
	status   Status
	balance  model.Amount
}

func New(asset model.Asset, bridge Bridge, settings Settings, queue chan<- any, logger *zap.Logger) *Client {
	return &Client{
		asset:    asset,
		bridge:   bridge,
		queue:    queue,
		logger:   logger.With(zap.String("asset", string(asset))),
		interval: DefaultPollInterval,
		refresh:  make(chan struct{}, 1),
		quit:     make(chan struct{}),
		settings: settings,
		status:   StatusUninitialized,
	}
}

// Start begins polling. The first poll happens immediately, then on a fixed
// interval. It is not blocking.
func (c *Client) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.poll()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.poll()
			case <-c.refresh:
				c.poll()
			case <-c.quit:
				return
			}
		}
	}()
}

// Stop tears the poller down. No event is delivered to the queue after Stop
// returns.
func (c *Client) Stop() {
	close(c.quit)
	c.wg.Wait()
}

func (c *Client) Asset() model.Asset {
	return c.asset
}

func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Client) Balance() model.Amount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balance
}

func (c *Client) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

func (c *Client) Activated() bool {
	return c.Settings().Activated
}

// OnSettingsChanged installs new settings and forces an immediate refresh.
func (c *Client) OnSettingsChanged(settings Settings) {
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()

	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

func (c *Client) poll() {
	if !c.Activated() {
		return
	}

	if c.Status() == StatusUninitialized {
		c.setStatus(StatusConnecting)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	if _, err := c.bridge.TipHeight(ctx); err != nil {
		c.logger.Debug("chain tip", zap.Error(err))
		c.setStatus(StatusFailed)
		return
	}

	balance, err := c.bridge.Balance(ctx)
	if err != nil {
		c.logger.Debug("balance", zap.Error(err))
		c.setStatus(StatusFailed)
		return
	}

	// A failed poll leaves the last known balance in place, only a
	// successful one replaces it.
	c.setStatus(StatusConnected)
	c.setBalance(balance)
}

func (c *Client) setStatus(status Status) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	c.mu.Unlock()

	if changed {
		c.emit(Event{Asset: c.asset, Kind: EventStatus, Status: status})
	}
}

func (c *Client) setBalance(balance model.Amount) {
	c.mu.Lock()
	changed := c.balance != balance
	c.balance = balance
	c.mu.Unlock()

	if changed {
		c.emit(Event{Asset: c.asset, Kind: EventBalance, Balance: balance})
	}
}

func (c *Client) emit(event Event) {
	select {
	case c.queue <- event:
	case <-c.quit:
	}
}
