package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"coin_rotator/internal/helper"
	"coin_rotator/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ErrPriceUnavailable marks a ticker the exchange does not quote right now.
// Callers treat it as "skip this pair for the cycle", never as fatal.
var ErrPriceUnavailable = errors.New("ticker price unavailable")

const defaultFee = 0.001

type symbolMeta struct {
	lotStep     float64
	minNotional float64
}

type Client struct {
	mu     sync.RWMutex
	prices map[string]float64 // last price per symbol, fed by the ws stream

	http     *http.Client
	wsDialer *websocket.Dialer

	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string

	metaMu sync.Mutex
	meta   map[string]symbolMeta
	fees   map[string]float64

	orderTimeout time.Duration
}

func NewClient(apiKey, apiSecret, tld string, orderTimeout time.Duration) *Client {
	if tld == "" {
		tld = "com"
	}
	return &Client{
		prices:       make(map[string]float64),
		http:         &http.Client{Timeout: 10 * time.Second},
		wsDialer:     &websocket.Dialer{},
		apiKey:       apiKey,
		apiSecret:    apiSecret,
		baseURL:      "https://api.binance." + tld,
		wsURL:        "wss://stream.binance." + tld + ":9443/ws/!miniTicker@arr",
		meta:         make(map[string]symbolMeta),
		fees:         make(map[string]float64),
		orderTimeout: orderTimeout,
	}
}

func (c *Client) setPrice(symbol string, price float64) {
	c.mu.Lock()
	c.prices[symbol] = price
	c.mu.Unlock()
}

func (c *Client) cachedPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

// AllTickerPrices returns one consistent snapshot of every market's last
// price. Scout cycles fetch this once and never re-query per pair.
func (c *Client) AllTickerPrices(ctx context.Context) (map[string]float64, error) {
	var tickers []struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := c.getJSON(ctx, "/api/v3/ticker/price", nil, &tickers); err != nil {
		return nil, errors.Wrap(err, "all ticker prices")
	}

	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		px, err := strconv.ParseFloat(t.Price, 64)
		if err != nil || px <= 0 {
			continue
		}
		out[t.Symbol] = px
		c.setPrice(t.Symbol, px)
	}
	return out, nil
}

// TickerPrice returns the last price of asset quoted in quote. The ws-fed
// cache is consulted first; a cold cache falls back to one REST lookup.
func (c *Client) TickerPrice(ctx context.Context, asset, quote string) (float64, error) {
	symbol := helper.Symbol(asset, quote)
	if px, ok := c.cachedPrice(symbol); ok && px > 0 {
		return px, nil
	}

	var t struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	err := c.getJSON(ctx, "/api/v3/ticker/price", url.Values{"symbol": {symbol}}, &t)
	if err != nil {
		if errors.Is(err, errBadSymbol) {
			return 0, ErrPriceUnavailable
		}
		return 0, errors.Wrapf(err, "ticker price %s", symbol)
	}
	px, err := strconv.ParseFloat(t.Price, 64)
	if err != nil || px <= 0 {
		return 0, ErrPriceUnavailable
	}
	c.setPrice(symbol, px)
	return px, nil
}

// CurrencyBalance returns the free balance of one asset; 0 when the
// account holds none of it.
func (c *Client) CurrencyBalance(ctx context.Context, asset string) (float64, error) {
	var acc struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := c.getSignedJSON(ctx, "/api/v3/account", nil, &acc); err != nil {
		return 0, errors.Wrap(err, "account balances")
	}
	for _, b := range acc.Balances {
		if b.Asset == asset {
			v, err := strconv.ParseFloat(b.Free, 64)
			if err != nil {
				return 0, errors.Wrapf(err, "parse balance %s", asset)
			}
			return v, nil
		}
	}
	return 0, nil
}

// MinNotional returns the exchange's minimum order value for asset/quote.
func (c *Client) MinNotional(ctx context.Context, asset, quote string) (float64, error) {
	m, err := c.symbolMeta(ctx, helper.Symbol(asset, quote))
	if err != nil {
		return 0, err
	}
	return m.minNotional, nil
}

// LotStep returns the quantity step for asset/quote orders.
func (c *Client) LotStep(ctx context.Context, asset, quote string) (float64, error) {
	m, err := c.symbolMeta(ctx, helper.Symbol(asset, quote))
	if err != nil {
		return 0, err
	}
	return m.lotStep, nil
}

func (c *Client) symbolMeta(ctx context.Context, symbol string) (symbolMeta, error) {
	c.metaMu.Lock()
	if m, ok := c.meta[symbol]; ok {
		c.metaMu.Unlock()
		return m, nil
	}
	c.metaMu.Unlock()

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType  string `json:"filterType"`
				StepSize    string `json:"stepSize"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	err := c.getJSON(ctx, "/api/v3/exchangeInfo", url.Values{"symbol": {symbol}}, &info)
	if err != nil {
		return symbolMeta{}, errors.Wrapf(err, "exchange info %s", symbol)
	}
	if len(info.Symbols) == 0 {
		return symbolMeta{}, fmt.Errorf("exchange info %s: symbol not listed", symbol)
	}

	var m symbolMeta
	for _, f := range info.Symbols[0].Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			m.lotStep = helper.ParseStep(f.StepSize)
		case "NOTIONAL", "MIN_NOTIONAL":
			m.minNotional = helper.ParseStep(f.MinNotional)
		}
	}

	c.metaMu.Lock()
	c.meta[symbol] = m
	c.metaMu.Unlock()
	return m, nil
}

// Fee returns the taker fee fraction for asset/quote. Lookup failures fall
// back to the exchange default so a fee outage never stalls scouting.
func (c *Client) Fee(ctx context.Context, asset, quote string, _ bool) (float64, error) {
	symbol := helper.Symbol(asset, quote)

	c.metaMu.Lock()
	if f, ok := c.fees[symbol]; ok {
		c.metaMu.Unlock()
		return f, nil
	}
	c.metaMu.Unlock()

	var resp []struct {
		Symbol string `json:"symbol"`
		Taker  string `json:"takerCommission"`
	}
	err := c.getSignedJSON(ctx, "/sapi/v1/asset/tradeFee", url.Values{"symbol": {symbol}}, &resp)
	if err != nil || len(resp) == 0 {
		logger.Warn("trade fee lookup failed for %s, using default %.4f: %v", symbol, defaultFee, err)
		return defaultFee, nil
	}
	fee, perr := strconv.ParseFloat(resp[0].Taker, 64)
	if perr != nil {
		return defaultFee, nil
	}

	c.metaMu.Lock()
	c.fees[symbol] = fee
	c.metaMu.Unlock()
	return fee, nil
}

var errBadSymbol = errors.New("unknown symbol")

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) getSignedJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := c.signedRequest(ctx, http.MethodGet, path, params)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) signedRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")

	query := params.Encode()
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(h.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusBadRequest {
		return errBadSymbol
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(rb))
	}
	if out == nil {
		return nil
	}
	return sonic.Unmarshal(rb, out)
}
