// Package checkout drives the checkout dialog: it validates the customer, routes the
// order to the selected payment method and reports what the dialog shows next.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"luxio/cart"
	"luxio/locale"
	"luxio/models"
	"luxio/orders"
	"luxio/validation"
)

type State string

const (
	StateIdle               State = "idle"
	StateSubmitting         State = "submitting"
	StatePaymentDetails     State = "payment-details-shown"
	StateTicketConfirmation State = "ticket-confirmation-shown"
	StateExternalRedirect   State = "external-redirect"
)

// TicketRedirectDelay is how long the ticket confirmation stays up before moving on to
// the dashboard.
const TicketRedirectDelay = 3 * time.Second

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoTicketCodes     = errors.New("at least one ticket code is required")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrBusy              = errors.New("checkout already in progress")
)

// ValidationError is a customer-input problem, shown to the user as-is.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// API is the part of the storefront backend checkout talks to.
type API interface {
	InitGatewayPayment(ctx context.Context, req models.PaymentInitRequest) (*models.PaymentInitResponse, error)
	SubmitOrder(ctx context.Context, req models.SubmitOrderRequest) (*models.SubmitOrderResponse, error)
}

type Request struct {
	Method      models.PaymentMethod
	Customer    models.CustomerInfo
	TicketType  string
	TicketCodes []string
	Language    string
}

type Outcome struct {
	State         State
	Reference     string
	Total         float64
	Bank          *models.BankDetails
	RedirectURL   string
	RedirectAfter time.Duration
	Message       string
}

type Flow struct {
	cart   *cart.Cart
	ledger *orders.Ledger
	api    API
	bank   models.BankDetails

	mu    sync.Mutex
	state State
}

func NewFlow(c *cart.Cart, ledger *orders.Ledger, api API, bank models.BankDetails) *Flow {
	return &Flow{cart: c, ledger: ledger, api: api, bank: bank, state: StateIdle}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Reset returns to idle, as when the dialog is closed and reopened.
func (f *Flow) Reset() {
	f.setState(StateIdle)
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateIdle {
		return ErrBusy
	}
	f.state = StateSubmitting
	return nil
}

// Submit places the order. On error the dialog goes back to idle and the cart is left
// untouched.
func (f *Flow) Submit(ctx context.Context, req Request) (Outcome, error) {
	if err := f.begin(); err != nil {
		return Outcome{State: f.State()}, err
	}

	out, err := f.submit(ctx, req)
	if err != nil {
		f.setState(StateIdle)
		return Outcome{State: StateIdle}, err
	}
	f.setState(out.State)
	return out, nil
}

func (f *Flow) submit(ctx context.Context, req Request) (Outcome, error) {
	if !req.Method.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	if err := validation.Struct(req.Customer); err != nil {
		return Outcome{}, &ValidationError{Err: err}
	}
	items := f.cart.Load(ctx)
	if len(items) == 0 {
		return Outcome{}, &ValidationError{Err: ErrEmptyCart}
	}
	lang := req.Language
	if !locale.IsSupported(lang) {
		lang = locale.Default
	}

	switch {
	case req.Method == models.PaymentBankTransfer:
		return f.bankTransfer(ctx, items, req)
	case req.Method == models.PaymentPrepaidTickets:
		return f.prepaidTickets(ctx, items, req, lang)
	default:
		return f.gateway(ctx, items, req, lang)
	}
}

// submitOrder sends a manually confirmed order to the backend and returns the
// reference the server recorded it under.
func (f *Flow) submitOrder(ctx context.Context, req models.SubmitOrderRequest) (*models.SubmitOrderResponse, string, error) {
	req.Reference = orders.GenerateReference()
	resp, err := f.api.SubmitOrder(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("submit %s order: %w", req.PaymentMethod, err)
	}
	if resp == nil || !resp.Success {
		msg := "order was not accepted"
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		return nil, "", fmt.Errorf("submit %s order: %s", req.PaymentMethod, msg)
	}
	reference := req.Reference
	if resp.Reference != "" {
		reference = resp.Reference
	}
	return resp, reference, nil
}

func (f *Flow) recordLocally(ctx context.Context, reference string, items []models.CartItem, total float64, customer models.CustomerInfo) {
	if _, err := f.ledger.Record(ctx, reference, items, total, customer); err != nil {
		log.Printf("checkout: order %s not saved locally: %v", reference, err)
	}
	f.cart.Clear(ctx)
}

func (f *Flow) bankTransfer(ctx context.Context, items []models.CartItem, req Request) (Outcome, error) {
	resp, reference, err := f.submitOrder(ctx, models.SubmitOrderRequest{
		PaymentMethod: models.PaymentBankTransfer,
		Items:         items,
		CustomerInfo:  req.Customer,
	})
	if err != nil {
		return Outcome{}, err
	}

	total := cart.Total(items)
	if resp.Total > 0 {
		total = resp.Total
	}
	f.recordLocally(ctx, reference, items, total, req.Customer)

	bank := f.bank
	if resp.Bank != nil {
		bank = *resp.Bank
	}
	bank.Reference = reference
	return Outcome{
		State:     StatePaymentDetails,
		Reference: reference,
		Total:     total,
		Bank:      &bank,
		Message:   resp.Message,
	}, nil
}

func (f *Flow) prepaidTickets(ctx context.Context, items []models.CartItem, req Request, lang string) (Outcome, error) {
	codes := make([]string, 0, len(req.TicketCodes))
	for _, code := range req.TicketCodes {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return Outcome{}, &ValidationError{Err: ErrNoTicketCodes}
	}

	resp, reference, err := f.submitOrder(ctx, models.SubmitOrderRequest{
		PaymentMethod: models.PaymentPrepaidTickets,
		Items:         items,
		CustomerInfo:  req.Customer,
		TicketType:    req.TicketType,
		TicketCodes:   codes,
	})
	if err != nil {
		return Outcome{}, err
	}

	total := cart.Total(items)
	if resp.Total > 0 {
		total = resp.Total
	}
	f.recordLocally(ctx, reference, items, total, req.Customer)

	return Outcome{
		State:         StateTicketConfirmation,
		Reference:     reference,
		Total:         total,
		RedirectURL:   locale.Localize(lang, "/dashboard"),
		RedirectAfter: TicketRedirectDelay,
		Message:       resp.Message,
	}, nil
}

func (f *Flow) gateway(ctx context.Context, items []models.CartItem, req Request, lang string) (Outcome, error) {
	resp, err := f.api.InitGatewayPayment(ctx, models.PaymentInitRequest{
		Provider:     req.Method,
		Items:        items,
		CustomerInfo: req.Customer,
		Language:     lang,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("init payment: %w", err)
	}
	if !resp.Success || resp.RedirectURL == "" {
		msg := resp.Message
		if msg == "" {
			msg = "payment initialization failed"
		}
		return Outcome{}, errors.New(msg)
	}

	f.cart.Clear(ctx)
	return Outcome{
		State:       StateExternalRedirect,
		Reference:   resp.Reference,
		Total:       cart.Total(items),
		RedirectURL: resp.RedirectURL,
	}, nil
}

// ScheduleRedirect calls navigate with out.RedirectURL once out.RedirectAfter has
// elapsed. The returned function cancels it.
func ScheduleRedirect(out Outcome, navigate func(url string)) (cancel func() bool) {
	if out.RedirectURL == "" {
		return func() bool { return false }
	}
	if out.RedirectAfter <= 0 {
		navigate(out.RedirectURL)
		return func() bool { return false }
	}
	t := time.AfterFunc(out.RedirectAfter, func() { navigate(out.RedirectURL) })
	return t.Stop
}
