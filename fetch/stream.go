package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/stratus/shared"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// readTimeout is the websocket read deadline.
	readTimeout = time.Second * 60
	// writeTimeout is the websocket write deadline.
	writeTimeout = time.Second * 10
	// pingInterval is the interval between keepalive pings.
	pingInterval = time.Second * 20
	// reconnectWait is the pause before a reconnection attempt.
	reconnectWait = time.Second * 5
	// maxMessageSize is the read limit for inbound messages.
	maxMessageSize = 1 << 20
)

// StreamConfig represents the configuration for the candle stream.
type StreamConfig struct {
	// URL is the exchange websocket url.
	URL string
	// Markets represents the streamed markets.
	Markets []string
	// Timeframe is the streamed bar timeframe.
	Timeframe shared.Timeframe
	// SendMarketUpdate relays the provided market update for processing.
	SendMarketUpdate func(candle shared.Candlestick)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *StreamConfig) Validate() error {
	var errs error

	if cfg.URL == "" {
		errs = errors.Join(errs, fmt.Errorf("websocket url cannot be an empty string"))
	}
	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for candle stream"))
	}
	if cfg.SendMarketUpdate == nil {
		errs = errors.Join(errs, fmt.Errorf("market update function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Stream represents a live candle stream over a websocket connection.
// Closed bars received on the socket are parsed and relayed for processing;
// dropped connections are redialed with a fixed wait.
type Stream struct {
	cfg  *StreamConfig
	conn *websocket.Conn
}

// NewStream initializes a new candle stream.
func NewStream(cfg *StreamConfig) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Stream{cfg: cfg}, nil
}

// dial establishes the websocket connection and subscribes to the
// configured markets.
func (s *Stream) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.cfg.URL, err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	sub := struct {
		Op       string   `json:"op"`
		Markets  []string `json:"markets"`
		Interval string   `json:"interval"`
	}{
		Op:       "subscribe",
		Markets:  s.cfg.Markets,
		Interval: s.cfg.Timeframe.String(),
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribing to markets: %w", err)
	}

	s.conn = conn

	return nil
}

// handleMessage parses the provided stream message and relays closed bars.
func (s *Stream) handleMessage(message []byte) {
	data := gjson.ParseBytes(message)
	if !data.Get("candle").Exists() {
		return
	}
	// Bars are only actionable once closed.
	if !data.Get("candle.closed").Bool() {
		return
	}

	candles, err := shared.ParseCandlesticks([]gjson.Result{data.Get("candle")},
		data.Get("candle.symbol").String(), s.cfg.Timeframe)
	if err != nil {
		s.cfg.Logger.Error().Msgf("parsing streamed candle: %v", err)
		return
	}

	s.cfg.SendMarketUpdate(candles[0])
}

// keepAlive pings the connection on an interval until the context is done.
func (s *Stream) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Run manages the lifecycle processes of the candle stream.
func (s *Stream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.dial(ctx); err != nil {
			s.cfg.Logger.Error().Msgf("connecting candle stream: %v", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectWait):
				continue
			}
		}

		pingCtx, cancelPing := context.WithCancel(ctx)
		go s.keepAlive(pingCtx, s.conn)

		for {
			_, message, err := s.conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					s.cfg.Logger.Error().Msgf("candle stream closed, reconnecting: %v", err)
				}
				break
			}

			s.handleMessage(message)
			s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		}

		cancelPing()
		s.conn.Close()
	}
}

// Close closes the underlying websocket connection.
func (s *Stream) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
