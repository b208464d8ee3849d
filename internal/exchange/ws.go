package exchange

import (
	"context"
	"strconv"
	"time"

	"coin_rotator/pkg/logger"

	"github.com/bytedance/sonic"
)

// StreamTickers keeps the in-memory price cache warm from the exchange's
// all-market mini-ticker stream, reconnecting with backoff until ctx ends.
func (c *Client) StreamTickers(ctx context.Context) {
	retry := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := c.wsDialer.DialContext(ctx, c.wsURL, nil)
		if err != nil {
			retry++
			logger.Warn("ticker stream dial failed (attempt %d): %v", retry, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(300*min(retry, 10)) * time.Millisecond):
			}
			continue
		}
		retry = 0
		logger.Info("ticker stream connected")

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				_ = conn.Close()
				logger.Warn("ticker stream read failed: %v", err)
				break
			}
			c.consumeMiniTickers(msg)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (c *Client) consumeMiniTickers(msg []byte) {
	var frames []struct {
		Symbol string `json:"s"`
		Close  string `json:"c"`
	}
	if err := sonic.Unmarshal(msg, &frames); err != nil {
		return
	}
	for _, f := range frames {
		px, err := strconv.ParseFloat(f.Close, 64)
		if err != nil || px <= 0 {
			continue
		}
		c.setPrice(f.Symbol, px)
	}
}
