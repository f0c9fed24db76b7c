package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"luxio/cart"
	"luxio/gateway"
	"luxio/locale"
	"luxio/middlewares"
	"luxio/models"
	"luxio/orders"
	"luxio/repository"
	"luxio/validation"

	"github.com/gin-gonic/gin"
)

var errUnknownItem = errors.New("unknown item")

type GatewayRegistry interface {
	For(method models.PaymentMethod) (gateway.Gateway, error)
}

type PaymentSettings struct {
	PublicBaseURL     string
	Currency          string
	PaymentCheckDelay time.Duration
	// Bank is returned to bank transfer customers with their order reference.
	Bank models.BankDetails

	NowPaymentsIPNKey string
	NowPaymentsIPNURL string
}

const maxIPNBody = 64 << 10

type PaymentController struct {
	orders    repository.Orders
	products  repository.Products
	gateways  GatewayRegistry
	publisher EventPublisher
	settings  PaymentSettings
}

func NewPaymentController(orders repository.Orders, products repository.Products, gateways GatewayRegistry, publisher EventPublisher, settings PaymentSettings) *PaymentController {
	if settings.Currency == "" {
		settings.Currency = "EUR"
	}
	return &PaymentController{orders: orders, products: products, gateways: gateways, publisher: publisher, settings: settings}
}

// priceItems rebuilds the order lines from the catalog. Client prices are ignored;
// a line whose description names a variant is charged the variant price.
func (p *PaymentController) priceItems(ctx context.Context, items []models.CartItem) ([]models.OrderItem, error) {
	lines := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		product, err := p.products.Get(ctx, item.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", errUnknownItem, item.ID)
		}
		if err != nil {
			return nil, err
		}

		line, ok := matchLine(*product, item.Description)
		if !ok {
			return nil, fmt.Errorf("%w: %s (%s)", errUnknownItem, item.ID, item.Description)
		}
		qty := min(max(item.Quantity, 1), cart.MaxQuantity)
		lines = append(lines, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Description: line.Description,
			Quantity:    qty,
			Price:       line.Price,
		})
	}
	return lines, nil
}

func matchLine(product models.Product, description string) (models.CartItem, bool) {
	base := product.CartLine(nil)
	if description == "" || description == base.Description {
		return base, true
	}
	for i := range product.Variants {
		line := product.CartLine(&product.Variants[i])
		if line.Description == description {
			return line, true
		}
	}
	return models.CartItem{}, false
}

func (p *PaymentController) publishCreated(ctx context.Context, order *models.StoredOrder) {
	if p.publisher == nil {
		return
	}
	evt := models.OrderEvent{
		OrderID:   order.ID,
		Reference: order.Reference,
		UserID:    order.UserID,
		Type:      models.EventOrderCreated,
		Status:    order.Status,
		Method:    order.PaymentMethod,
		Total:     order.Total,
		Occurred:  time.Now(),
	}
	if err := p.publisher.PublishOrderEvent(ctx, evt); err != nil {
		log.Printf("Failed to publish order created event: %v", err)
	}

	switch {
	case order.PaymentMethod.IsGateway():
		evt.Type = models.EventPaymentCheck
		if err := p.publisher.PublishDelayedEvent(ctx, evt, p.settings.PaymentCheckDelay); err != nil {
			log.Printf("Failed to publish delayed payment check event: %v", err)
		}
	case order.PaymentMethod == models.PaymentPrepaidTickets:
		evt.Type = models.EventTicketsSubmitted
		if err := p.publisher.PublishOrderEvent(ctx, evt); err != nil {
			log.Printf("Failed to publish tickets submitted event: %v", err)
		}
	}
}

func (p *PaymentController) returnURL(lang, path, reference string) string {
	q := url.Values{}
	q.Set("reference", reference)
	return p.settings.PublicBaseURL + locale.Localize(lang, path+"?"+q.Encode())
}

func (p *PaymentController) callbackURL(method models.PaymentMethod) string {
	if method != models.PaymentNowPayments {
		return ""
	}
	return p.settings.NowPaymentsIPNURL
}

func (p *PaymentController) newOrder(c *gin.Context, userID int64, reference string, method models.PaymentMethod, items []models.CartItem, customer models.CustomerInfo) (*models.StoredOrder, bool) {
	if err := validation.Struct(customer); err != nil {
		respondCode(c, http.StatusBadRequest, err.Error(), models.CodeValidation)
		return nil, false
	}
	lines, err := p.priceItems(c.Request.Context(), items)
	if errors.Is(err, errUnknownItem) {
		respondCode(c, http.StatusBadRequest, err.Error(), models.CodeValidation)
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to price order: %v", err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return nil, false
	}
	if !orders.IsReference(reference) {
		reference = orders.GenerateReference()
	}
	return &models.StoredOrder{
		UserID:        userID,
		Reference:     reference,
		Total:         repository.OrderTotal(lines),
		Status:        models.OrderPending,
		PaymentMethod: method,
		CustomerInfo:  customer,
		Items:         lines,
	}, true
}

// InitGateway creates the order and the hosted payment page at the selected crypto
// gateway. The order is cancelled right away if the gateway refuses it.
func (p *PaymentController) InitGateway(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("create", succeeded(c))
	}()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.PaymentInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, err.Error(), models.CodeValidation)
		return
	}
	if req.Provider == "" {
		req.Provider = models.PaymentNowPayments
	}
	if !req.Provider.IsGateway() {
		respondCode(c, http.StatusBadRequest, "Unsupported payment provider", models.CodeValidation)
		return
	}
	gw, err := p.gateways.For(req.Provider)
	if err != nil {
		middlewares.RecordPaymentInit(string(req.Provider), false)
		respondError(c, http.StatusServiceUnavailable, "Payment provider unavailable")
		return
	}

	order, ok := p.newOrder(c, userID, "", req.Provider, req.Items, req.CustomerInfo)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := p.orders.Create(ctx, order, "", nil); err != nil {
		log.Printf("Failed to create order: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to create order")
		return
	}

	lang := req.Language
	if !locale.IsSupported(lang) {
		lang = middlewares.Language(c)
	}
	paymentURL, err := gw.CreateInvoice(ctx, gateway.Invoice{
		Reference:   order.Reference,
		Amount:      order.Total,
		Currency:    p.settings.Currency,
		Description: "Luxio order " + order.Reference,
		Email:       order.CustomerInfo.Email,
		Name:        strings.TrimSpace(order.CustomerInfo.FirstName + " " + order.CustomerInfo.LastName),
		SuccessURL:  p.returnURL(lang, "/payment-success", order.Reference),
		CancelURL:   p.returnURL(lang, "/payment-cancelled", order.Reference),
		CallbackURL: p.callbackURL(req.Provider),
	})
	middlewares.RecordPaymentInit(string(req.Provider), err == nil)
	if err != nil {
		log.Printf("Gateway %s refused order %s: %v", req.Provider, order.Reference, err)
		if cerr := p.orders.UpdateStatus(ctx, order.ID, models.OrderCancelled); cerr != nil {
			log.Printf("Failed to cancel order %d: %v", order.ID, cerr)
		}
		respondError(c, http.StatusBadGateway, "Payment provider could not create the payment, please try again")
		return
	}

	c.JSON(http.StatusOK, models.PaymentInitResponse{Success: true, RedirectURL: paymentURL, Reference: order.Reference})
	p.publishCreated(ctx, order)
}

// SubmitOrder records bank transfer and prepaid ticket orders. Both are confirmed by
// an operator later.
func (p *PaymentController) SubmitOrder(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("create", succeeded(c))
	}()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, err.Error(), models.CodeValidation)
		return
	}

	var codes []string
	switch req.PaymentMethod {
	case models.PaymentBankTransfer:
	case models.PaymentPrepaidTickets:
		for _, code := range req.TicketCodes {
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, code)
			}
		}
		if len(codes) == 0 {
			respondCode(c, http.StatusBadRequest, "At least one ticket code is required", models.CodeValidation)
			return
		}
	default:
		respondCode(c, http.StatusBadRequest, "Unsupported payment method", models.CodeValidation)
		return
	}

	order, ok := p.newOrder(c, userID, req.Reference, req.PaymentMethod, req.Items, req.CustomerInfo)
	if !ok {
		return
	}
	if err := p.orders.Create(c.Request.Context(), order, strings.TrimSpace(req.TicketType), codes); err != nil {
		log.Printf("Failed to create order: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to create order")
		return
	}

	middlewares.RecordPaymentInit(string(req.PaymentMethod), true)
	resp := models.SubmitOrderResponse{Success: true, OrderID: order.ID, Reference: order.Reference, Total: order.Total}
	if order.PaymentMethod == models.PaymentBankTransfer {
		bank := p.settings.Bank
		bank.Reference = order.Reference
		resp.Bank = &bank
	}
	c.JSON(http.StatusCreated, resp)
	p.publishCreated(c.Request.Context(), order)
}

// NowPaymentsIPN applies a signed NowPayments notification to the order it names.
// Statuses that are neither paid nor failed are acknowledged and ignored.
func (p *PaymentController) NowPaymentsIPN(c *gin.Context) {
	defer func() {
		middlewares.RecordOrderOperation("ipn", succeeded(c))
	}()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIPNBody))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Unreadable notification")
		return
	}

	ipn, err := gateway.VerifyNowPaymentsIPN(p.settings.NowPaymentsIPNKey, body, c.GetHeader(gateway.HeaderNowPaymentsSig))
	switch {
	case errors.Is(err, gateway.ErrNotConfigured):
		respondError(c, http.StatusServiceUnavailable, "Payment notifications are not configured")
		return
	case errors.Is(err, gateway.ErrBadSignature):
		log.Printf("Rejected NowPayments IPN with bad signature")
		respondError(c, http.StatusUnauthorized, "Invalid signature")
		return
	case err != nil:
		respondCode(c, http.StatusBadRequest, err.Error(), models.CodeValidation)
		return
	}

	var next models.OrderStatus
	switch {
	case ipn.Paid():
		next = models.OrderPaid
	case ipn.Failed():
		next = models.OrderCancelled
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Notification ignored", "status": ipn.PaymentStatus})
		return
	}

	ctx := c.Request.Context()
	orderID, current, err := p.orders.ByReference(ctx, ipn.OrderID, models.PaymentNowPayments)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, "Order not found")
		return
	case err != nil:
		log.Printf("Failed to look up order %s: %v", ipn.OrderID, err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}
	if current == next {
		c.JSON(http.StatusOK, gin.H{"message": "Order already up to date", "order_id": orderID})
		return
	}
	// A late failure notice never undoes a payment.
	if next == models.OrderCancelled && current != models.OrderPending {
		c.JSON(http.StatusOK, gin.H{"message": "Notification ignored", "status": ipn.PaymentStatus})
		return
	}

	err = p.orders.UpdateStatus(ctx, orderID, next)
	if errors.Is(err, repository.ErrInvalidStatus) {
		log.Printf("IPN %s for order %s ignored in status %s", ipn.PaymentStatus, ipn.OrderID, current)
		c.JSON(http.StatusOK, gin.H{"message": "Notification ignored", "status": ipn.PaymentStatus})
		return
	}
	if err != nil {
		log.Printf("Failed to update order %d: %v", orderID, err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}

	log.Printf("NowPayments IPN moved order %s to %s", ipn.OrderID, next)
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order_id": orderID})

	if p.publisher != nil {
		evt := models.OrderEvent{
			OrderID:   orderID,
			Reference: ipn.OrderID,
			Type:      models.EventStatusUpdated,
			Status:    next,
			Method:    models.PaymentNowPayments,
			Occurred:  time.Now(),
		}
		if err := p.publisher.PublishOrderEvent(ctx, evt); err != nil {
			log.Printf("Failed to publish order updated event: %v", err)
		}
	}
}
