package order

import (
	"context"
	"encoding/json"
	"errors"
	"math"
)

// Values the back office frontend matches on.
const (
	StatusUnpaid      = "Ödənilməyib"
	NoteMixedCurrency = "Fərqli valyutalar"
	OtherHotel        = "Digər"
	CurrencyNone      = "N/A"
)

var ErrNotFound = errors.New("order not found")

// Money is an amount in a single currency.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Hotel is one stay booked for the tourist.
type Hotel struct {
	Name     string `json:"otelAdi"`
	CheckIn  string `json:"girisTarixi"`
	CheckOut string `json:"cixisTarixi"`
	Extra    Extra  `json:"-" cbor:"extra,omitempty"`
}

// Transport describes the transfer arranged for the order.
type Transport struct {
	DriverInfo string `json:"surucuMelumatlari"`
	Extra      Extra  `json:"-" cbor:"extra,omitempty"`
}

// Order is a booking sold to a tourist. JSON keys follow the frontend;
// members without a field are kept in Extra and written back unchanged.
type Order struct {
	SaleNo         string          `json:"satisNo"`
	CreatedAt      string          `json:"creationTimestamp"`
	CreatedBy      string          `json:"createdBy"`
	Tourist        string          `json:"turist"`
	ReservationNo  string          `json:"rezNomresi,omitempty"`
	Purchase       *Money          `json:"alish,omitempty"`
	Sale           *Money          `json:"satish,omitempty"`
	DetailedCosts  json.RawMessage `json:"detailedCosts,omitempty"`
	Hotels         []Hotel         `json:"hotels,omitempty"`
	Transport      *Transport      `json:"transport,omitempty"`
	AdultGuests    int             `json:"adultGuests"`
	ChildGuests    int             `json:"childGuests"`
	ForeignCompany string          `json:"xariciSirket,omitempty"`
	PaymentStatus  string          `json:"paymentStatus"`
	PaymentDueDate *string         `json:"paymentDueDate"`
	Note           string          `json:"qeyd,omitempty"`
	Extra          Extra           `json:"-" cbor:"extra,omitempty"`
}

// FinancialFields are the JSON keys only financial editors may change.
var FinancialFields = []string{"alish", "satish", "detailedCosts"}

// ComputedFields are the JSON keys the server derives on every response.
var ComputedFields = []string{"gelir", "milestone"}

// Profit is the margin of an order.
type Profit struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Note     string  `json:"note,omitempty"`
}

// Comparable reports whether the profit can be summed into totals.
func (p Profit) Comparable() bool {
	return p.Note == "" && p.Currency != "" && p.Currency != CurrencyNone
}

// Profit is sale minus purchase, rounded to cents. Orders priced in two
// currencies have no computable profit; an unpriced order has zero.
func (o Order) Profit() Profit {
	if o.Purchase == nil && o.Sale == nil {
		return Profit{}
	}
	if o.Purchase == nil || o.Sale == nil || o.Purchase.Currency != o.Sale.Currency {
		return Profit{Currency: CurrencyNone, Note: NoteMixedCurrency}
	}
	amount := math.Round((o.Sale.Amount-o.Purchase.Amount)*100) / 100
	return Profit{Amount: amount, Currency: o.Sale.Currency}
}

// Unpaid reports whether payment is still outstanding.
func (o Order) Unpaid() bool {
	return o.PaymentStatus == "" || o.PaymentStatus == StatusUnpaid
}

// Store persists orders keyed by sale number, listed in sale number order.
type Store interface {
	List(ctx context.Context) ([]Order, error)
	Get(ctx context.Context, saleNo string) (Order, error)
	Save(ctx context.Context, o Order) error
	Delete(ctx context.Context, saleNo string) error
}
