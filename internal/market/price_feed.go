package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// PriceFeedConfig configures the websocket price feed.
type PriceFeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// WindowSize is how many recent ticks per token feed volatility.
	WindowSize int
}

// DefaultPriceFeedConfig returns default price feed configuration.
func DefaultPriceFeedConfig() PriceFeedConfig {
	return PriceFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		WindowSize:        30,
	}
}

// PriceFeed streams token prices over a websocket and keeps a rolling
// window per token for volatility estimates. Prices and volatility are
// best-effort inputs; a disconnected feed simply reports no data.
type PriceFeed struct {
	endpoint string
	tokens   []string
	config   PriceFeedConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	windows   map[string][]float64
	windowsMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

type priceTick struct {
	Token    string  `json:"token"`
	PriceUSD float64 `json:"price_usd"`
}

type subscribeRequest struct {
	Op     string   `json:"op"`
	Tokens []string `json:"tokens"`
}

// NewPriceFeed connects to the endpoint and subscribes to the given tokens.
func NewPriceFeed(ctx context.Context, endpoint string, tokens []string, config *PriceFeedConfig, logger *log.Logger) (*PriceFeed, error) {
	cfg := DefaultPriceFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &PriceFeed{
		endpoint: endpoint,
		tokens:   tokens,
		config:   cfg,
		logger:   logger,
		windows:  make(map[string][]float64),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// PriceUSD returns the most recent price for a token.
func (f *PriceFeed) PriceUSD(token string) (float64, bool) {
	f.windowsMu.RLock()
	defer f.windowsMu.RUnlock()

	w := f.windows[token]
	if len(w) == 0 {
		return 0, false
	}
	return w[len(w)-1], true
}

// Volatility returns the standard deviation of tick-over-tick relative
// price changes in the current window, or nil with fewer than three ticks.
func (f *PriceFeed) Volatility(token string) *float64 {
	f.windowsMu.RLock()
	defer f.windowsMu.RUnlock()

	w := f.windows[token]
	if len(w) < 3 {
		return nil
	}

	returns := make([]float64, 0, len(w)-1)
	for i := 1; i < len(w); i++ {
		if w[i-1] == 0 {
			continue
		}
		returns = append(returns, (w[i]-w[i-1])/w[i-1])
	}
	if len(returns) < 2 {
		return nil
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	v := math.Sqrt(variance)
	return &v
}

// Close shuts the feed down and waits for its goroutines.
func (f *PriceFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

func (f *PriceFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := conn.WriteJSON(subscribeRequest{Op: "subscribe", Tokens: f.tokens}); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	f.conn = conn
	return nil
}

func (f *PriceFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

func (f *PriceFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Subscribe is replayed inside connect, no separate resubscribe step.
	if err := f.connect(ctx); err != nil {
		f.logger.Printf("[pricefeed] reconnect failed: %v", err)
	}
}

func (f *PriceFeed) handleMessage(message []byte) {
	var tick priceTick
	if err := json.Unmarshal(message, &tick); err != nil || tick.Token == "" || tick.PriceUSD <= 0 {
		return
	}

	f.windowsMu.Lock()
	defer f.windowsMu.Unlock()

	w := append(f.windows[tick.Token], tick.PriceUSD)
	if len(w) > f.config.WindowSize {
		w = w[len(w)-f.config.WindowSize:]
	}
	f.windows[tick.Token] = w
}

func (f *PriceFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				// A failed ping surfaces as a read error, the reader
				// owns reconnection.
				f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}
