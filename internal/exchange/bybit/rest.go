package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joelsfoster/gizmo/internal/exchange"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	Key, Secret string
	BaseURL     string
	Category    string // inverse or linear
	AccountType string // CONTRACT or UNIFIED
	RecvWindow  string
	Timeout     time.Duration
}

type Client struct {
	key, secret, base string
	category          string
	accountType       string
	recvWindow        string
	rest              *resty.Client
}

var _ exchange.Client = (*Client)(nil)

func NewREST(c Config) *Client {
	r := resty.New()
	if c.Timeout > 0 {
		r.SetTimeout(c.Timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	if c.RecvWindow == "" {
		c.RecvWindow = "5000"
	}
	return &Client{
		key:         c.Key,
		secret:      c.Secret,
		base:        strings.TrimRight(c.BaseURL, "/"),
		category:    c.Category,
		accountType: c.AccountType,
		recvWindow:  c.RecvWindow,
		rest:        r,
	}
}

// Response is the v5 envelope shared by every endpoint.
type Response struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*Response, error) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	req := c.rest.R().
		SetContext(ctx).
		SetHeader("X-BAPI-API-KEY", c.key).
		SetHeader("X-BAPI-TIMESTAMP", ts).
		SetHeader("X-BAPI-RECV-WINDOW", c.recvWindow).
		SetHeader("X-BAPI-SIGN-TYPE", "2")

	var payload string
	if method == resty.MethodGet {
		payload = query.Encode()
		req.SetQueryString(payload)
	} else {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", path, err)
		}
		payload = string(raw)
		req.SetHeader("Content-Type", "application/json").SetBody(raw)
	}
	req.SetHeader("X-BAPI-SIGN", Sign(c.secret, ts, c.key, c.recvWindow, payload))

	resp, err := req.Execute(method, c.base+path)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s %s: %w", method, path, exchange.ErrTimeout)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%s %s: status %d, body: %s", method, path, resp.StatusCode(), resp.String())
	}

	out := &Response{}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	if respErr := respHasError(out); respErr != nil {
		return nil, fmt.Errorf("%s: %w", path, respErr)
	}
	return out, nil
}

func respHasError(resp *Response) error {
	if resp.RetCode != 0 {
		return fmt.Errorf("bybit: %d %s", resp.RetCode, resp.RetMsg)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

type walletResult struct {
	List []struct {
		AccountType string `json:"accountType"`
		Coin        []struct {
			Coin            string `json:"coin"`
			WalletBalance   string `json:"walletBalance"`
			TotalPositionIM string `json:"totalPositionIM"`
			TotalOrderIM    string `json:"totalOrderIM"`
		} `json:"coin"`
	} `json:"list"`
}

// FetchBalance returns the free and used margin for coin. Used is the
// initial margin locked by positions and resting orders.
func (c *Client) FetchBalance(ctx context.Context, coin string) (exchange.Balance, error) {
	q := url.Values{}
	q.Set("accountType", c.accountType)
	q.Set("coin", coin)

	resp, err := c.doRequest(ctx, resty.MethodGet, "/v5/account/wallet-balance", q, nil)
	if err != nil {
		return exchange.Balance{}, err
	}

	var r walletResult
	if err := json.Unmarshal(resp.Result, &r); err != nil {
		return exchange.Balance{}, fmt.Errorf("decode wallet balance: %w", err)
	}
	for _, acct := range r.List {
		for _, cb := range acct.Coin {
			if cb.Coin != coin {
				continue
			}
			used := parseFloat(cb.TotalPositionIM) + parseFloat(cb.TotalOrderIM)
			free := parseFloat(cb.WalletBalance) - used
			if free < 0 {
				free = 0
			}
			return exchange.Balance{Coin: coin, Free: free, Used: used}, nil
		}
	}
	return exchange.Balance{}, fmt.Errorf("wallet balance: coin %s not found", coin)
}

// FetchTicker returns the last traded price for symbol.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", symbol)

	resp, err := c.doRequest(ctx, resty.MethodGet, "/v5/market/tickers", q, nil)
	if err != nil {
		return exchange.Ticker{}, err
	}

	var r struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resp.Result, &r); err != nil {
		return exchange.Ticker{}, fmt.Errorf("decode ticker: %w", err)
	}
	if len(r.List) == 0 {
		return exchange.Ticker{}, fmt.Errorf("ticker: symbol %s not found", symbol)
	}
	price := parseFloat(r.List[0].LastPrice)
	if price <= 0 {
		return exchange.Ticker{}, fmt.Errorf("ticker: invalid last price %q", r.List[0].LastPrice)
	}
	return exchange.Ticker{Symbol: symbol, LastPrice: price}, nil
}

// CreateOrder places a market or limit order on the one-way position.
func (c *Client) CreateOrder(ctx context.Context, o exchange.OrderRequest) (*exchange.OrderResult, error) {
	body := map[string]interface{}{
		"category":    c.category,
		"symbol":      o.Symbol,
		"side":        string(o.Side),
		"orderType":   string(o.Type),
		"qty":         o.Qty,
		"positionIdx": 0,
	}
	if o.Type == exchange.Limit {
		body["price"] = o.Price
		body["timeInForce"] = "GTC"
	}
	if o.TakeProfit != "" {
		body["takeProfit"] = o.TakeProfit
	}
	if o.StopLoss != "" {
		body["stopLoss"] = o.StopLoss
	}
	if o.ReduceOnly {
		body["reduceOnly"] = true
	}
	if o.CloseOnTrigger {
		body["closeOnTrigger"] = true
	}
	if o.ClientOrderID != "" {
		body["orderLinkId"] = o.ClientOrderID
	}

	resp, err := c.doRequest(ctx, resty.MethodPost, "/v5/order/create", nil, body)
	if err != nil {
		return nil, err
	}

	var r struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(resp.Result, &r); err != nil {
		return nil, fmt.Errorf("decode order result: %w", err)
	}
	return &exchange.OrderResult{OrderID: r.OrderID, ClientOrderID: r.OrderLinkID}, nil
}
