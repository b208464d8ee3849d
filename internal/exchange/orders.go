package exchange

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"coin_rotator/internal/helper"
	"coin_rotator/internal/models"
	"coin_rotator/pkg/logger"

	"github.com/pkg/errors"
)

type orderResp struct {
	Symbol      string `json:"symbol"`
	OrderID     int64  `json:"orderId"`
	Status      string `json:"status"`
	ExecutedQty string `json:"executedQty"`
	CumQuoteQty string `json:"cummulativeQuoteQty"`
	Price       string `json:"price"`
}

// SellAll market-sells the entire free balance of asset into quote.
// The quantity is floored to the lot step; a fill that does not complete
// within the order timeout is treated as a failed leg.
func (c *Client) SellAll(ctx context.Context, asset, quote string) (*models.TradeResult, error) {
	symbol := helper.Symbol(asset, quote)

	balance, err := c.CurrencyBalance(ctx, asset)
	if err != nil {
		return nil, err
	}
	step, err := c.LotStep(ctx, asset, quote)
	if err != nil {
		return nil, err
	}
	qty := helper.FloorToStep(balance, step)
	if qty <= 0 {
		return nil, errors.Errorf("sell %s: nothing to sell after lot rounding", symbol)
	}
	logger.Info("selling %.8f of %s", qty, symbol)

	return c.placeMarketOrder(ctx, symbol, "SELL", qty)
}

// Buy market-buys asset using the whole free quote balance, sized at the
// current ticker price and floored to the lot step. Single attempt: one
// rejection surfaces as an error and the caller re-scouts next cycle.
func (c *Client) Buy(ctx context.Context, asset, quote string) (*models.TradeResult, error) {
	symbol := helper.Symbol(asset, quote)

	quoteBalance, err := c.CurrencyBalance(ctx, quote)
	if err != nil {
		return nil, err
	}
	price, err := c.TickerPrice(ctx, asset, quote)
	if err != nil {
		return nil, err
	}
	step, err := c.LotStep(ctx, asset, quote)
	if err != nil {
		return nil, err
	}
	qty := helper.FloorToStep(quoteBalance/price, step)
	if qty <= 0 {
		return nil, errors.Errorf("buy %s: order size rounds to zero", symbol)
	}
	logger.Info("buying %.8f of %s", qty, symbol)

	return c.placeMarketOrder(ctx, symbol, "BUY", qty)
}

func (c *Client) placeMarketOrder(ctx context.Context, symbol, side string, qty float64) (*models.TradeResult, error) {
	params := url.Values{
		"symbol":   {symbol},
		"side":     {side},
		"type":     {"MARKET"},
		"quantity": {strconv.FormatFloat(qty, 'f', -1, 64)},
	}
	req, err := c.signedRequest(ctx, "POST", "/api/v3/order", params)
	if err != nil {
		return nil, err
	}
	var placed orderResp
	if err := c.do(req, &placed); err != nil {
		return nil, errors.Wrapf(err, "place %s %s", side, symbol)
	}

	filled, err := c.waitForOrder(ctx, symbol, placed.OrderID)
	if err != nil {
		return nil, err
	}

	execQty, _ := strconv.ParseFloat(filled.ExecutedQty, 64)
	quoteQty, _ := strconv.ParseFloat(filled.CumQuoteQty, 64)
	price := 0.0
	if execQty > 0 {
		price = quoteQty / execQty
	}
	return &models.TradeResult{
		Symbol:   symbol,
		Side:     side,
		Price:    price,
		Quantity: execQty,
	}, nil
}

// waitForOrder polls order status until FILLED, bounded by the configured
// order timeout so a stuck order never blocks the control loop forever.
func (c *Client) waitForOrder(ctx context.Context, symbol string, orderID int64) (*orderResp, error) {
	deadline := time.Now().Add(c.orderTimeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		params := url.Values{
			"symbol":  {symbol},
			"orderId": {strconv.FormatInt(orderID, 10)},
		}
		req, err := c.signedRequest(ctx, "GET", "/api/v3/order", params)
		if err != nil {
			return nil, err
		}
		var stat orderResp
		if err := c.do(req, &stat); err != nil {
			logger.Warn("order status %s/%d: %v", symbol, orderID, err)
		} else {
			switch stat.Status {
			case "FILLED":
				return &stat, nil
			case "REJECTED", "EXPIRED", "CANCELED":
				return nil, errors.Errorf("order %s/%d ended %s", symbol, orderID, stat.Status)
			}
		}

		if time.Now().After(deadline) {
			return nil, errors.Errorf("order %s/%d not filled within %s", symbol, orderID, c.orderTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
