package wallet

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/catalogfi/swapboard/pkg/model"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// frame is the envelope the wallet core pushes over its websocket.
type frame struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// command is the envelope for fire and forget commands sent to the core.
type command struct {
	Method string           `json:"method"`
	ID     string           `json:"id,omitempty"`
	Offer  *model.SwapOffer `json:"offer,omitempty"`
}

// RemoteCore is a Core connected to a wallet core daemon over a websocket.
// Incoming frames are translated into events and posted to the board's
// queue in arrival order.
type RemoteCore struct {
	url    string
	dialer func() (*websocket.Conn, error)
	queue  chan<- any
	logger *zap.Logger

	quit chan struct{}
	wg   sync.WaitGroup

	mu            sync.RWMutex
	conn          *websocket.Conn
	height        model.Height
	heightStamp   time.Time
	pendingWrites []command
}

func NewRemoteCore(url string, queue chan<- any, logger *zap.Logger) *RemoteCore {
	return &RemoteCore{
		url: url,
		dialer: func() (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			return conn, err
		},
		queue:  queue,
		logger: logger.With(zap.String("service", "walletcore")),
		quit:   make(chan struct{}),
	}
}

// Start spawns the read loop. It reconnects with a doubling fallback, capped
// at five minutes.
func (c *RemoteCore) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		fallback := 5 * time.Second
		for {
			select {
			case <-c.quit:
				return
			default:
			}

			conn, err := c.dialer()
			if err != nil {
				c.logger.Error("dial wallet core", zap.Error(err))
				c.sleep(fallback)
				if fallback < 5*time.Minute {
					fallback *= 2
				}
				continue
			}
			fallback = 5 * time.Second

			c.setConn(conn)
			c.flushPending()
			c.readLoop(conn)
			c.setConn(nil)
			conn.Close()
		}
	}()
}

// Stop closes the connection and waits for the read loop. No event is posted
// to the queue after Stop returns.
func (c *RemoteCore) Stop() {
	close(c.quit)
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *RemoteCore) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case <-c.quit:
			default:
				c.logger.Debug("read wallet core frame", zap.Error(err))
			}
			return
		}

		event, err := c.decode(f)
		if err != nil {
			c.logger.Debug("malformed wallet core frame", zap.String("type", f.Type), zap.Error(err))
			continue
		}
		if event == nil {
			continue
		}

		select {
		case c.queue <- event:
		case <-c.quit:
			return
		}
	}
}

func (c *RemoteCore) decode(f frame) (any, error) {
	switch f.Type {
	case "offers":
		var event OffersEvent
		if err := json.Unmarshal(f.Msg, &event); err != nil {
			return nil, err
		}
		return event, nil
	case "transactions":
		var event TransactionsEvent
		if err := json.Unmarshal(f.Msg, &event); err != nil {
			return nil, err
		}
		return event, nil
	case "balance":
		var event BalanceEvent
		if err := json.Unmarshal(f.Msg, &event); err != nil {
			return nil, err
		}
		return event, nil
	case "height":
		var event HeightEvent
		if err := json.Unmarshal(f.Msg, &event); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.height = event.Height
		c.heightStamp = time.Unix(event.Timestamp, 0)
		c.mu.Unlock()
		return event, nil
	default:
		c.logger.Debug("unknown wallet core frame", zap.String("type", f.Type))
		return nil, nil
	}
}

func (c *RemoteCore) GetSwapOffers() {
	c.send(command{Method: "getSwapOffers"})
}

func (c *RemoteCore) GetTransactions() {
	c.send(command{Method: "getTransactions"})
}

func (c *RemoteCore) CurrentHeight() model.Height {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

func (c *RemoteCore) CurrentHeightTimestamp() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heightStamp
}

func (c *RemoteCore) CancelTx(id string) {
	c.send(command{Method: "cancelTx", ID: id})
}

func (c *RemoteCore) DeleteTx(id string) {
	c.send(command{Method: "deleteTx", ID: id})
}

func (c *RemoteCore) PublishOffer(offer model.SwapOffer) {
	c.send(command{Method: "publishOffer", Offer: &offer})
}

// send writes the command if connected, otherwise parks it until the next
// successful dial. Commands carry no ack, a lost command only means the
// matching delta never arrives.
func (c *RemoteCore) send(cmd command) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.pendingWrites = append(c.pendingWrites, cmd)
		return
	}
	if err := c.conn.WriteJSON(cmd); err != nil {
		c.logger.Debug("write wallet core command", zap.String("method", cmd.Method), zap.Error(err))
	}
}

func (c *RemoteCore) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *RemoteCore) flushPending() {
	c.mu.Lock()
	pending := c.pendingWrites
	c.pendingWrites = nil
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}
	for _, cmd := range pending {
		if err := conn.WriteJSON(cmd); err != nil {
			c.logger.Debug("flush wallet core command", zap.String("method", cmd.Method), zap.Error(err))
			return
		}
	}
}

func (c *RemoteCore) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-c.quit:
	}
}
