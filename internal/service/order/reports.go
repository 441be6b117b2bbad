package order

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/azerweys/panel/backend/internal/model/order"
)

// ReportCurrencies are the currencies totals are kept in.
var ReportCurrencies = []string{"AZN", "USD", "EUR"}

// NotificationWindow is how far ahead check-ins are watched.
const NotificationWindow = 3 * 24 * time.Hour

// Reservation is one complete hotel stay.
type Reservation struct {
	SaleNo      string `json:"satisNo"`
	Tourist     string `json:"turist"`
	Hotel       string `json:"otelAdi"`
	CheckIn     string `json:"girisTarixi"`
	CheckOut    string `json:"cixisTarixi"`
	AdultGuests int    `json:"adultGuests"`
	ChildGuests int    `json:"childGuests"`
}

// Totals maps a currency to a sum.
type Totals map[string]float64

func newTotals() Totals {
	t := Totals{}
	for _, c := range ReportCurrencies {
		t[c] = 0
	}
	return t
}

func (t Totals) add(m *order.Money) {
	if m == nil {
		return
	}
	if _, ok := t[m.Currency]; ok {
		t[m.Currency] += m.Amount
	}
}

func (t Totals) addProfit(p order.Profit) {
	if !p.Comparable() {
		return
	}
	if _, ok := t[p.Currency]; ok {
		t[p.Currency] += p.Amount
	}
}

func (t Totals) round() {
	for k, v := range t {
		t[k] = math.Round(v*100) / 100
	}
}

// HotelTotals are the figures of every order staying at one hotel.
type HotelTotals struct {
	OrdersCount int    `json:"ordersCount"`
	Alish       Totals `json:"alish"`
	Satish      Totals `json:"satish"`
	Gelir       Totals `json:"gelir"`
}

// Report is the financial summary of all orders.
type Report struct {
	TotalAlish  Totals                  `json:"totalAlish"`
	TotalSatish Totals                  `json:"totalSatish"`
	TotalGelir  Totals                  `json:"totalGelir"`
	ByHotel     map[string]*HotelTotals `json:"byHotel"`
}

// Notification flags an upcoming check-in with missing details.
type Notification struct {
	SaleNo  string `json:"satisNo"`
	Tourist string `json:"turist"`
	CheckIn string `json:"girisTarixi"`
	Problem string `json:"problem"`
}

// Reservations lists every hotel stay with a name and both dates.
func (s *Service) Reservations(ctx context.Context) ([]Reservation, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return BuildReservations(orders), nil
}

// BuildReservations flattens orders into their complete hotel stays.
func BuildReservations(orders []order.Order) []Reservation {
	out := lo.FlatMap(orders, func(o order.Order, _ int) []Reservation {
		tourist := o.Tourist
		if tourist == "" {
			tourist = "-"
		}
		complete := lo.Filter(o.Hotels, func(h order.Hotel, _ int) bool {
			return h.Name != "" && h.CheckIn != "" && h.CheckOut != ""
		})
		return lo.Map(complete, func(h order.Hotel, _ int) Reservation {
			return Reservation{
				SaleNo:      o.SaleNo,
				Tourist:     tourist,
				Hotel:       h.Name,
				CheckIn:     h.CheckIn,
				CheckOut:    h.CheckOut,
				AdultGuests: o.AdultGuests,
				ChildGuests: o.ChildGuests,
			}
		})
	})
	if out == nil {
		out = []Reservation{}
	}
	return out
}

// Report sums purchases, sales and profit per currency and per hotel.
func (s *Service) Report(ctx context.Context) (Report, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list orders: %w", err)
	}
	return BuildReport(orders), nil
}

// BuildReport computes the report of orders. An order counts once per
// hotel stay in the per-hotel breakdown.
func BuildReport(orders []order.Order) Report {
	r := Report{
		TotalAlish:  newTotals(),
		TotalSatish: newTotals(),
		TotalGelir:  newTotals(),
		ByHotel:     map[string]*HotelTotals{},
	}
	for _, o := range orders {
		profit := o.Profit()
		r.TotalAlish.add(o.Purchase)
		r.TotalSatish.add(o.Sale)
		r.TotalGelir.addProfit(profit)

		for _, h := range o.Hotels {
			name := strings.TrimSpace(h.Name)
			if name == "" {
				name = order.OtherHotel
			}
			ht, ok := r.ByHotel[name]
			if !ok {
				ht = &HotelTotals{Alish: newTotals(), Satish: newTotals(), Gelir: newTotals()}
				r.ByHotel[name] = ht
			}
			ht.OrdersCount++
			ht.Alish.add(o.Purchase)
			ht.Satish.add(o.Sale)
			ht.Gelir.addProfit(profit)
		}
	}
	for _, t := range []Totals{r.TotalAlish, r.TotalSatish, r.TotalGelir} {
		t.round()
	}
	for _, ht := range r.ByHotel {
		ht.Alish.round()
		ht.Satish.round()
		ht.Gelir.round()
	}
	return r
}

// Notifications lists check-ins between today and three days from now (UTC)
// whose hotel or transfer details are incomplete.
func (s *Service) Notifications(ctx context.Context) ([]Notification, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return BuildNotifications(orders, s.now()), nil
}

// BuildNotifications evaluates orders against the day of now.
func BuildNotifications(orders []order.Order, now time.Time) []Notification {
	today := now.UTC().Truncate(24 * time.Hour)
	until := today.Add(NotificationWindow)

	out := lo.FlatMap(orders, func(o order.Order, _ int) []Notification {
		return lo.FilterMap(o.Hotels, func(h order.Hotel, _ int) (Notification, bool) {
			checkIn, ok := parseDate(h.CheckIn)
			if !ok || checkIn.Before(today) || checkIn.After(until) {
				return Notification{}, false
			}
			var problems []string
			if h.Name == "" || h.CheckOut == "" {
				problems = append(problems, "Otel məlumatları natamamdır")
			}
			if o.Transport == nil || o.Transport.DriverInfo == "" {
				problems = append(problems, "Transport məlumatı yoxdur")
			}
			if len(problems) == 0 {
				return Notification{}, false
			}
			return Notification{
				SaleNo:  o.SaleNo,
				Tourist: o.Tourist,
				CheckIn: checkIn.Format("02.01.2006"),
				Problem: strings.Join(problems, ". ") + ".",
			}, true
		})
	})
	if out == nil {
		out = []Notification{}
	}
	return out
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04", "2006-01-02T15:04:05"}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
