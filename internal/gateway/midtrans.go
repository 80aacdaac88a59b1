// Package gateway wraps the Midtrans Snap and Core APIs used to create
// payment links and confirm transaction status.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

var ErrTransactionNotFound = errors.New("gateway: transaction not found")

// Outcome is the lifecycle meaning of a gateway transaction status.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomePaid      Outcome = "paid"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

type PaymentOrder struct {
	OrderID   string
	Amount    int64
	DonorName string
	ItemName  string
}

type PaymentLink struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Status is a verified transaction status from the Core API.
type Status struct {
	OrderID           string
	TransactionID     string
	TransactionStatus string
	FraudStatus       string
	PaymentType       string
	GrossAmount       int64
}

// Outcome maps the Midtrans status onto the gift lifecycle. A captured card
// payment still under fraud review stays pending.
func (s *Status) Outcome() Outcome {
	switch strings.ToLower(s.TransactionStatus) {
	case "settlement":
		return OutcomePaid
	case "capture":
		if strings.EqualFold(s.FraudStatus, "challenge") {
			return OutcomePending
		}
		return OutcomePaid
	case "deny", "failure":
		return OutcomeFailed
	case "cancel", "expire":
		return OutcomeCancelled
	}
	return OutcomePending
}

// Gateway is what the handlers need from a payment provider.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, order PaymentOrder) (*PaymentLink, error)
	CheckStatus(ctx context.Context, orderID string) (*Status, error)
}

type Midtrans struct {
	snapClient snap.Client
	coreClient coreapi.Client
}

var _ Gateway = (*Midtrans)(nil)

func NewMidtrans(serverKey string, production bool) *Midtrans {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	m := &Midtrans{}
	m.snapClient.New(serverKey, env)
	m.coreClient.New(serverKey, env)
	return m
}

func (m *Midtrans) CreatePaymentLink(_ context.Context, order PaymentOrder) (*PaymentLink, error) {
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  order.OrderID,
			GrossAmt: order.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: order.DonorName,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    order.OrderID,
				Price: order.Amount,
				Qty:   1,
				Name:  order.ItemName,
			},
		},
	}

	resp, merr := m.snapClient.CreateTransaction(req)
	if resp == nil || resp.RedirectURL == "" {
		if merr != nil {
			return nil, fmt.Errorf("create snap transaction: %w", merr)
		}
		return nil, errors.New("create snap transaction: empty response")
	}
	return &PaymentLink{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (m *Midtrans) CheckStatus(_ context.Context, orderID string) (*Status, error) {
	resp, merr := m.coreClient.CheckTransaction(orderID)
	if merr != nil && merr.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if resp == nil {
		if merr != nil {
			return nil, fmt.Errorf("check transaction %s: %w", orderID, merr)
		}
		return nil, fmt.Errorf("check transaction %s: empty response", orderID)
	}
	if resp.StatusCode == strconv.Itoa(http.StatusNotFound) {
		return nil, ErrTransactionNotFound
	}
	return statusFrom(resp)
}

func statusFrom(resp *coreapi.TransactionStatusResponse) (*Status, error) {
	amount, err := ParseGrossAmount(resp.GrossAmount)
	if err != nil {
		return nil, err
	}
	return &Status{
		OrderID:           resp.OrderID,
		TransactionID:     resp.TransactionID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		PaymentType:       resp.PaymentType,
		GrossAmount:       amount,
	}, nil
}

// ParseGrossAmount reads Midtrans' decimal string ("50000.00").
func ParseGrossAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	whole, frac, _ := strings.Cut(raw, ".")
	amount, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid gross amount %q: %w", raw, err)
	}
	if strings.Trim(frac, "0") != "" {
		return 0, fmt.Errorf("gross amount %q has a fractional part", raw)
	}
	return amount, nil
}
