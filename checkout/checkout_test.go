package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"luxio/cart"
	"luxio/models"
	"luxio/orders"
	"luxio/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	initResp   *models.PaymentInitResponse
	initErr    error
	submitResp *models.SubmitOrderResponse
	submitErr  error

	lastInit   models.PaymentInitRequest
	lastSubmit models.SubmitOrderRequest
}

func (f *fakeAPI) InitGatewayPayment(_ context.Context, req models.PaymentInitRequest) (*models.PaymentInitResponse, error) {
	f.lastInit = req
	return f.initResp, f.initErr
}

func (f *fakeAPI) SubmitOrder(_ context.Context, req models.SubmitOrderRequest) (*models.SubmitOrderResponse, error) {
	f.lastSubmit = req
	return f.submitResp, f.submitErr
}

func customer() models.CustomerInfo {
	return models.CustomerInfo{
		FirstName:  "Marie",
		LastName:   "Curie",
		Email:      "marie@example.fr",
		Phone:      "+33 6 12 34 56 78",
		Address:    "11 rue Pierre et Marie Curie",
		City:       "Paris",
		PostalCode: "75005",
		Country:    "France",
	}
}

type fixture struct {
	flow   *Flow
	cart   *cart.Cart
	ledger *orders.Ledger
	api    *fakeAPI
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	c := cart.New(store)
	require.True(t, c.Add(context.Background(), models.CartItem{ID: "p1", Name: "Phone", Price: 200, Description: "Black"}).Success)
	require.True(t, c.Add(context.Background(), models.CartItem{ID: "p1", Name: "Phone", Price: 200, Description: "Black"}).Success)

	ledger := orders.NewLedger(store)
	api := &fakeAPI{submitResp: &models.SubmitOrderResponse{Success: true}}
	bank := models.BankDetails{Holder: "Luxio SAS", IBAN: "FR7612345", BIC: "LUXIFRPP"}
	return fixture{flow: NewFlow(c, ledger, api, bank), cart: c, ledger: ledger, api: api}
}

func TestSubmit_BankTransfer(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.api.submitResp = &models.SubmitOrderResponse{Success: true, OrderID: 3, Reference: "LX00000777", Total: 399.5}

	out, err := fx.flow.Submit(ctx, Request{Method: models.PaymentBankTransfer, Customer: customer()})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentBankTransfer, fx.api.lastSubmit.PaymentMethod)
	assert.Len(t, fx.api.lastSubmit.Items, 1)
	assert.Equal(t, customer(), fx.api.lastSubmit.CustomerInfo)
	assert.Regexp(t, `^LX\d{8}$`, fx.api.lastSubmit.Reference)
	assert.Empty(t, fx.api.lastSubmit.TicketCodes)

	assert.Equal(t, StatePaymentDetails, out.State)
	assert.Equal(t, StatePaymentDetails, fx.flow.State())
	assert.Equal(t, "LX00000777", out.Reference)
	assert.Equal(t, 399.5, out.Total)
	require.NotNil(t, out.Bank)
	assert.Equal(t, "FR7612345", out.Bank.IBAN)
	assert.Equal(t, "LX00000777", out.Bank.Reference)

	recorded, ok := fx.ledger.Find(ctx, out.Reference)
	require.True(t, ok)
	assert.Equal(t, models.OrderPending, recorded.Status)
	assert.Empty(t, fx.cart.Load(ctx))
}

func TestSubmit_BankTransferUsesServerBankDetails(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.api.submitResp = &models.SubmitOrderResponse{
		Success:   true,
		Reference: "LX00000778",
		Bank:      &models.BankDetails{Holder: "Luxio SAS", IBAN: "DE8937040044", BIC: "COBADEFF"},
	}

	out, err := fx.flow.Submit(ctx, Request{Method: models.PaymentBankTransfer, Customer: customer()})
	require.NoError(t, err)
	require.NotNil(t, out.Bank)
	assert.Equal(t, "DE8937040044", out.Bank.IBAN)
	assert.Equal(t, "LX00000778", out.Bank.Reference)
	assert.Equal(t, 400.0, out.Total)
}

func TestSubmit_BankTransferFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.api.submitErr = errors.New("backend down")

	_, err := fx.flow.Submit(ctx, Request{Method: models.PaymentBankTransfer, Customer: customer()})
	require.Error(t, err)
	assert.Equal(t, StateIdle, fx.flow.State())
	assert.Len(t, fx.cart.Load(ctx), 1)
	assert.Empty(t, fx.ledger.Load(ctx))

	fx.api.submitErr = nil
	fx.api.submitResp = &models.SubmitOrderResponse{Success: false, Message: "Unsupported payment method"}
	_, err = fx.flow.Submit(ctx, Request{Method: models.PaymentBankTransfer, Customer: customer()})
	assert.ErrorContains(t, err, "Unsupported payment method")
	assert.Len(t, fx.cart.Load(ctx), 1)
}

func TestSubmit_PrepaidTickets(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.api.submitResp = &models.SubmitOrderResponse{Success: true, Reference: "LX12345678", Message: "pending verification"}

	out, err := fx.flow.Submit(ctx, Request{
		Method:      models.PaymentPrepaidTickets,
		Customer:    customer(),
		TicketType:  "transcash",
		TicketCodes: []string{" ABC123 ", "", "   ", "DEF456"},
		Language:    "fr",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ABC123", "DEF456"}, fx.api.lastSubmit.TicketCodes)
	assert.Equal(t, StateTicketConfirmation, out.State)
	assert.Equal(t, "LX12345678", out.Reference)
	assert.Equal(t, "/fr/dashboard", out.RedirectURL)
	assert.Equal(t, 3*time.Second, out.RedirectAfter)
	assert.Empty(t, fx.cart.Load(ctx))
}

func TestSubmit_PrepaidTicketsRequireCodes(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.flow.Submit(ctx, Request{Method: models.PaymentPrepaidTickets, Customer: customer(), TicketCodes: []string{"", " "}})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.ErrorIs(t, err, ErrNoTicketCodes)
	assert.Equal(t, StateIdle, fx.flow.State())
	assert.Len(t, fx.cart.Load(ctx), 1)
}

func TestSubmit_GatewayRedirect(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.api.initResp = &models.PaymentInitResponse{Success: true, RedirectURL: "https://nowpayments.io/payment/?iid=1", Reference: "LX00000009"}

	out, err := fx.flow.Submit(ctx, Request{Method: models.PaymentNowPayments, Customer: customer(), Language: "xx"})
	require.NoError(t, err)

	assert.Equal(t, StateExternalRedirect, out.State)
	assert.Equal(t, "https://nowpayments.io/payment/?iid=1", out.RedirectURL)
	assert.Equal(t, "en", fx.api.lastInit.Language)
	assert.Equal(t, models.PaymentNowPayments, fx.api.lastInit.Provider)
	assert.Empty(t, fx.cart.Load(ctx))
}

func TestSubmit_GatewayFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.api.initResp = &models.PaymentInitResponse{Success: false, Message: "Gateway unavailable"}

	_, err := fx.flow.Submit(ctx, Request{Method: models.PaymentMaxelPay, Customer: customer()})
	require.EqualError(t, err, "Gateway unavailable")
	assert.Equal(t, StateIdle, fx.flow.State())
	assert.Len(t, fx.cart.Load(ctx), 1)

	fx.api.initResp, fx.api.initErr = nil, errors.New("connection refused")
	_, err = fx.flow.Submit(ctx, Request{Method: models.PaymentMaxelPay, Customer: customer()})
	require.Error(t, err)
	assert.Len(t, fx.cart.Load(ctx), 1)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	bad := customer()
	bad.Email = "nope"
	_, err := fx.flow.Submit(ctx, Request{Method: models.PaymentBankTransfer, Customer: bad})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = fx.flow.Submit(ctx, Request{Method: "paypal", Customer: customer()})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	fx.cart.Clear(ctx)
	_, err = fx.flow.Submit(ctx, Request{Method: models.PaymentBankTransfer, Customer: customer()})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestSubmit_OnlyFromIdle(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.flow.Submit(ctx, Request{Method: models.PaymentBankTransfer, Customer: customer()})
	require.NoError(t, err)

	_, err = fx.flow.Submit(ctx, Request{Method: models.PaymentBankTransfer, Customer: customer()})
	assert.ErrorIs(t, err, ErrBusy)

	fx.flow.Reset()
	assert.Equal(t, StateIdle, fx.flow.State())
}

func TestScheduleRedirect(t *testing.T) {
	var (
		mu  sync.Mutex
		got string
	)
	done := make(chan struct{})
	ScheduleRedirect(Outcome{RedirectURL: "/en/dashboard", RedirectAfter: 10 * time.Millisecond}, func(url string) {
		mu.Lock()
		got = url
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("redirect did not fire")
	}
	mu.Lock()
	assert.Equal(t, "/en/dashboard", got)
	mu.Unlock()

	fired := false
	cancel := ScheduleRedirect(Outcome{RedirectURL: "/en/dashboard", RedirectAfter: time.Hour}, func(string) { fired = true })
	assert.True(t, cancel())
	assert.False(t, fired)
}
