package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/observability"
)

// WSConfig configures the websocket bar source.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// MaxReconnects is the number of consecutive failed dials tolerated
	// before giving up. Zero retries forever.
	MaxReconnects int
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// HandshakeTimeout bounds each dial.
	HandshakeTimeout time.Duration
}

// DefaultWSConfig returns default websocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		MaxReconnects:     10,
		ReadTimeout:       10 * time.Minute,
		HandshakeTimeout:  10 * time.Second,
	}
}

// wsBar is the feed's bar message. Prices are cents.
type wsBar struct {
	Symbol   string `json:"symbol"`
	T        int64  `json:"t"`
	O        int64  `json:"o"`
	H        int64  `json:"h"`
	L        int64  `json:"l"`
	C        int64  `json:"c"`
	V        int64  `json:"v"`
	Complete bool   `json:"complete"`
}

// WSBarSource streams completed bars for one symbol from a websocket feed.
type WSBarSource struct {
	endpoint       string
	symbol         string
	barSizeMinutes int
	config         WSConfig
}

// NewWSBarSource creates a bar source. A nil config uses DefaultWSConfig.
func NewWSBarSource(endpoint, symbol string, barSizeMinutes int, config *WSConfig) *WSBarSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	return &WSBarSource{
		endpoint:       endpoint,
		symbol:         symbol,
		barSizeMinutes: barSizeMinutes,
		config:         cfg,
	}
}

// Subscribe starts streaming. Completed bars for the source's symbol arrive
// on the first channel in strictly increasing timestamp order; partial bars,
// other symbols and bars replayed after a reconnect are dropped.
// The bar channel is closed when ctx is cancelled or the feed gives up.
// In the latter case the error channel receives an ErrFeedUnavailable.
func (s *WSBarSource) Subscribe(ctx context.Context) (<-chan *domain.Candle, <-chan error) {
	out := make(chan *domain.Candle, 64)
	errs := make(chan error, 1)
	go s.run(ctx, out, errs)
	return out, errs
}

func (s *WSBarSource) run(ctx context.Context, out chan<- *domain.Candle, errs chan<- error) {
	defer close(out)

	dialer := websocket.Dialer{HandshakeTimeout: s.config.HandshakeTimeout}
	delay := s.config.ReconnectDelay
	failures := 0
	var lastTs int64

	for {
		conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			observability.RecordFeedError("dial")
			if s.config.MaxReconnects > 0 && failures > s.config.MaxReconnects {
				errs <- fmt.Errorf("%w: %d failed dials, last: %v", ErrFeedUnavailable, failures, err)
				return
			}
			log.Printf("[ws-bars] Dial failed (%d), retrying in %v: %v", failures, delay, err)
			if !sleep(ctx, delay) {
				return
			}
			observability.RecordFeedReconnect()
			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			continue
		}

		log.Printf("[ws-bars] Connected to %s for %s", s.endpoint, s.symbol)
		failures = 0
		delay = s.config.ReconnectDelay

		err = s.readLoop(ctx, conn, out, &lastTs)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		observability.RecordFeedError("read")
		log.Printf("[ws-bars] Connection lost, reconnecting in %v: %v", delay, err)
		if !sleep(ctx, delay) {
			return
		}
		observability.RecordFeedReconnect()
	}
}

// readLoop delivers bars until the connection fails or ctx is done.
func (s *WSBarSource) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- *domain.Candle, lastTs *int64) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		c, kind, err := s.decode(message, *lastTs)
		observability.RecordFeedMessage(kind)
		if err != nil {
			observability.RecordFeedError("decode")
			log.Printf("[ws-bars] Dropping message: %v", err)
			continue
		}
		if c == nil {
			continue
		}

		select {
		case out <- c:
			*lastTs = c.TimestampMs
			observability.UpdateLastBar(c.TimestampMs)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// decode parses one message and classifies it. It returns a nil candle for
// messages that are valid but not delivered.
func (s *WSBarSource) decode(message []byte, lastTs int64) (*domain.Candle, string, error) {
	var m wsBar
	if err := json.Unmarshal(message, &m); err != nil {
		return nil, "invalid", fmt.Errorf("decode bar: %w", err)
	}
	switch {
	case m.Symbol != s.symbol:
		return nil, "other_symbol", nil
	case !m.Complete:
		return nil, "partial", nil
	case m.T <= lastTs:
		return nil, "duplicate", nil
	}
	return &domain.Candle{
		Symbol:         m.Symbol,
		TimestampMs:    m.T,
		Open:           m.O,
		High:           m.H,
		Low:            m.L,
		Close:          m.C,
		Volume:         m.V,
		Completed:      true,
		BarSizeMinutes: s.barSizeMinutes,
	}, "bar", nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
