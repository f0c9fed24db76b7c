package models

type PaymentMethod string

const (
	PaymentBankTransfer   PaymentMethod = "bank-transfer"
	PaymentPrepaidTickets PaymentMethod = "prepaid-tickets"
	PaymentNowPayments    PaymentMethod = "nowpayments"
	PaymentMaxelPay       PaymentMethod = "maxelpay"
)

// IsGateway reports whether the method hands the customer to a third-party payment page.
func (m PaymentMethod) IsGateway() bool {
	return m == PaymentNowPayments || m == PaymentMaxelPay
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentBankTransfer, PaymentPrepaidTickets, PaymentNowPayments, PaymentMaxelPay:
		return true
	}
	return false
}

type BankDetails struct {
	Holder    string `json:"holder"`
	IBAN      string `json:"iban"`
	BIC       string `json:"bic"`
	Reference string `json:"reference"`
}

type PaymentInitRequest struct {
	Provider     PaymentMethod `json:"provider"`
	Items        []CartItem    `json:"items" binding:"required,min=1,dive"`
	CustomerInfo CustomerInfo  `json:"customerInfo" binding:"required"`
	Language     string        `json:"language"`
}

type PaymentInitResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Message     string `json:"message,omitempty"`
}

type SubmitOrderRequest struct {
	Reference     string        `json:"reference"`
	PaymentMethod PaymentMethod `json:"paymentMethod" binding:"required"`
	Items         []CartItem    `json:"items" binding:"required,min=1,dive"`
	CustomerInfo  CustomerInfo  `json:"customerInfo" binding:"required"`
	TicketType    string        `json:"ticketType,omitempty"`
	TicketCodes   []string      `json:"ticketCodes,omitempty"`
}

type SubmitOrderResponse struct {
	Success   bool         `json:"success"`
	OrderID   int64        `json:"orderId,omitempty"`
	Reference string       `json:"reference,omitempty"`
	Total     float64      `json:"total,omitempty"`
	Bank      *BankDetails `json:"bank,omitempty"`
	Message   string       `json:"message,omitempty"`
}
