package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AlpacaClient implements Gateway against the Alpaca trading REST API.
type AlpacaClient struct {
	keyID      string
	secret     string
	baseURL    string
	httpClient *http.Client
}

// NewAlpacaClient creates a gateway client. timeout bounds every call; a hit
// timeout surfaces as ErrUnknownOutcome on writes.
func NewAlpacaClient(baseURL, keyID, secret string, timeout time.Duration) *AlpacaClient {
	return &AlpacaClient{
		keyID:   keyID,
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		},
	}
}

type alpacaAccount struct {
	Equity string `json:"equity"`
}

type alpacaOrder struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
}

type alpacaOrderRequest struct {
	ClientOrderID string            `json:"client_order_id,omitempty"`
	Symbol        string            `json:"symbol"`
	Qty           string            `json:"qty"`
	Side          string            `json:"side"`
	Type          string            `json:"type"`
	TimeInForce   string            `json:"time_in_force"`
	OrderClass    string            `json:"order_class,omitempty"`
	StopLoss      *alpacaStopLoss   `json:"stop_loss,omitempty"`
	TakeProfit    *alpacaTakeProfit `json:"take_profit,omitempty"`
	TrailPrice    string            `json:"trail_price,omitempty"`
	TrailPercent  string            `json:"trail_percent,omitempty"`
}

type alpacaStopLoss struct {
	StopPrice string `json:"stop_price"`
}

type alpacaTakeProfit struct {
	LimitPrice string `json:"limit_price"`
}

type alpacaErrorBody struct {
	Message string `json:"message"`
}

// GetAccountEquity fetches current account equity.
func (c *AlpacaClient) GetAccountEquity(ctx context.Context) (decimal.Decimal, error) {
	var account alpacaAccount
	if err := c.do(ctx, http.MethodGet, "/v2/account", nil, &account); err != nil {
		return decimal.Zero, err
	}

	equity, err := decimal.NewFromString(account.Equity)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse account equity %q: %w", account.Equity, err)
	}
	return equity, nil
}

// SubmitBracketOrder places a market entry with attached stop loss (and take
// profit when set) and returns the broker order id.
func (c *AlpacaClient) SubmitBracketOrder(ctx context.Context, order BracketOrder) (string, error) {
	req := alpacaOrderRequest{
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Qty:           formatQty(order.Qty),
		Side:          strings.ToLower(order.Side),
		Type:          "market",
		TimeInForce:   "gtc",
		OrderClass:    "bracket",
		StopLoss:      &alpacaStopLoss{StopPrice: formatPrice(order.StopLossPrice)},
	}
	if order.TakeProfitPrice != nil {
		req.TakeProfit = &alpacaTakeProfit{LimitPrice: formatPrice(*order.TakeProfitPrice)}
	}

	var placed alpacaOrder
	if err := c.do(ctx, http.MethodPost, "/v2/orders", req, &placed); err != nil {
		return "", err
	}
	return placed.ID, nil
}

// SubmitTrailingStop places a trailing stop sell against an open position.
func (c *AlpacaClient) SubmitTrailingStop(ctx context.Context, stop TrailingStop) (string, error) {
	req := alpacaOrderRequest{
		ClientOrderID: stop.ClientOrderID,
		Symbol:        stop.Symbol,
		Qty:           formatQty(stop.Qty),
		Side:          "sell",
		Type:          "trailing_stop",
		TimeInForce:   "gtc",
	}
	switch {
	case stop.TrailPrice != nil:
		req.TrailPrice = formatPrice(*stop.TrailPrice)
	case stop.TrailPercent != nil:
		req.TrailPercent = formatPrice(*stop.TrailPercent)
	default:
		return "", fmt.Errorf("trailing stop for %s has neither trail_price nor trail_percent", stop.Symbol)
	}

	var placed alpacaOrder
	if err := c.do(ctx, http.MethodPost, "/v2/orders", req, &placed); err != nil {
		return "", err
	}
	return placed.ID, nil
}

// GetOrderStatus re-reads a submitted order's state from the broker.
func (c *AlpacaClient) GetOrderStatus(ctx context.Context, brokerOrderID string) (OrderStatus, error) {
	var order alpacaOrder
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+brokerOrderID, nil, &order); err != nil {
		return OrderStatus{}, err
	}
	return mapOrderStatus(order)
}

// GetOrderByClientID resolves an order by the client id it was submitted with.
func (c *AlpacaClient) GetOrderByClientID(ctx context.Context, clientOrderID string) (string, OrderStatus, error) {
	var order alpacaOrder
	path := "/v2/orders:by_client_order_id?client_order_id=" + url.QueryEscape(clientOrderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &order); err != nil {
		return "", OrderStatus{}, err
	}
	status, err := mapOrderStatus(order)
	if err != nil {
		return "", OrderStatus{}, err
	}
	return order.ID, status, nil
}

func mapOrderStatus(order alpacaOrder) (OrderStatus, error) {
	switch order.Status {
	case "filled":
		fillPrice, err := decimal.NewFromString(order.FilledAvgPrice)
		if err != nil {
			return OrderStatus{}, fmt.Errorf("parse filled_avg_price %q: %w", order.FilledAvgPrice, err)
		}
		filledQty, err := decimal.NewFromString(order.FilledQty)
		if err != nil {
			return OrderStatus{}, fmt.Errorf("parse filled_qty %q: %w", order.FilledQty, err)
		}
		return OrderStatus{State: OrderFilled, FillPrice: fillPrice, FilledQty: filledQty}, nil
	case "rejected":
		return OrderStatus{State: OrderRejected, Reason: "rejected by broker"}, nil
	case "canceled", "expired", "done_for_day":
		return OrderStatus{State: OrderCancelled, Reason: order.Status}, nil
	default:
		// new, accepted, pending_new, partially_filled and friends all count
		// as still open.
		return OrderStatus{State: OrderOpen}, nil
	}
}

func (c *AlpacaClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errBody alpacaErrorBody
	_ = json.Unmarshal(raw, &errBody)
	reason := errBody.Message
	if reason == "" {
		reason = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrOrderNotFound, path)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnprocessableEntity:
		return &RejectionError{Reason: reason}
	default:
		return fmt.Errorf("broker %s %s failed: %d %s", method, path, resp.StatusCode, reason)
	}
}

// classifyTransportError separates "never arrived" from "may have arrived".
// A timeout on a write could mean the broker accepted the order and the
// response got lost, so it must be treated as unknown outcome.
func classifyTransportError(method string, err error) error {
	var netErr net.Error
	timedOut := errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded)

	if timedOut {
		if method == http.MethodGet {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ErrUnknownOutcome, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}
