package quotes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paperdesk/paperdesk/internal/domain"
)

const tickBuffer = 256

// Stream maintains a websocket subscription to the price feed and delivers
// ticks on a channel. The connection is re-dialed with backoff after any
// failure and all current subscriptions are replayed on reconnect.
type Stream struct {
	url    string
	logger *zap.Logger

	mu      sync.Mutex
	symbols map[string]struct{}
	conn    *websocket.Conn

	ticks chan domain.Tick
}

// NewStream prepares a stream for the given feed URL. Run must be called to
// start it.
func NewStream(url string, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		url:     url,
		logger:  logger,
		symbols: make(map[string]struct{}),
		ticks:   make(chan domain.Tick, tickBuffer),
	}
}

// Ticks is the channel price updates arrive on. Slow consumers lose ticks
// rather than stall the reader; the next tick for a symbol supersedes any
// dropped one.
func (s *Stream) Ticks() <-chan domain.Tick {
	return s.ticks
}

type subscribeMsg struct {
	Op     string `json:"op"`
	Symbol string `json:"symbol"`
}

// SetSymbols replaces the subscription set. Newly added symbols are
// subscribed immediately when a connection is up; removed ones are dropped
// on the next reconnect.
func (s *Stream) SetSymbols(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		next[sym] = struct{}{}
	}

	if s.conn != nil {
		for sym := range next {
			if _, had := s.symbols[sym]; had {
				continue
			}
			if err := s.conn.WriteJSON(subscribeMsg{Op: "subscribe", Symbol: sym}); err != nil {
				s.logger.Warn("failed to subscribe", zap.String("symbol", sym), zap.Error(err))
			}
		}
	}
	s.symbols = next
}

// Run dials the feed and pumps ticks until the context is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	retry := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			wait := retry.Duration()
			s.logger.Warn("feed dial failed, retrying",
				zap.String("url", s.url), zap.Duration("in", wait), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		s.attach(conn)
		s.readLoop(ctx, conn)
		s.detach(conn)
	}
}

// attach stores the connection and replays the subscription set.
func (s *Stream) attach(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn = conn
	for sym := range s.symbols {
		if err := conn.WriteJSON(subscribeMsg{Op: "subscribe", Symbol: sym}); err != nil {
			s.logger.Warn("failed to resubscribe", zap.String("symbol", sym), zap.Error(err))
			return
		}
	}
}

func (s *Stream) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

type wireTick struct {
	Symbol    string      `json:"symbol"`
	Price     json.Number `json:"price"`
	Timestamp json.Number `json:"timestamp"`
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("feed read failed, reconnecting", zap.Error(err))
			}
			return
		}

		tick, ok := s.decodeTick(data)
		if !ok {
			continue
		}

		select {
		case s.ticks <- tick:
		default:
			// drop, a fresher tick will follow
		}
	}
}

func (s *Stream) decodeTick(data []byte) (domain.Tick, bool) {
	var wire wireTick
	if err := json.Unmarshal(data, &wire); err != nil || wire.Symbol == "" {
		return domain.Tick{}, false
	}

	price, err := decimal.NewFromString(wire.Price.String())
	if err != nil || !price.IsPositive() {
		return domain.Tick{}, false
	}

	ts := time.Now().UTC()
	if wire.Timestamp.String() != "" {
		if parsed, err := parseEpoch(wire.Timestamp); err == nil {
			ts = parsed
		}
	}
	return domain.Tick{Symbol: wire.Symbol, Price: price, Timestamp: ts}, true
}
