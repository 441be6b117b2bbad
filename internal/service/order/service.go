package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/azerweys/panel/backend/internal/model/order"
	"github.com/azerweys/panel/backend/internal/model/permission"
	"github.com/azerweys/panel/backend/internal/model/user"
	"github.com/azerweys/panel/backend/internal/service/audit"
)

// FirstSaleNo is the number given to the first order.
const FirstSaleNo = 1695

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrForbidden   = errors.New("operation not permitted")
	ErrInvalid     = errors.New("invalid order")
	ErrNoteMissing = errors.New("note is missing")
)

// Milestones are the per-creator order counts worth celebrating.
var Milestones = []int{10, 50, 100}

// Permissions resolves what an identity may do.
type Permissions interface {
	For(ctx context.Context, identity user.Identity) (permission.Set, error)
}

// View is an order with its computed profit.
type View struct {
	order.Order
	Gelir order.Profit `json:"gelir"`
}

func (v View) MarshalJSON() ([]byte, error) {
	gelir, err := json.Marshal(v.Gelir)
	if err != nil {
		return nil, err
	}
	return order.WithMembers(v.Order, order.Extra{"gelir": gelir})
}

// Milestone reports the creator's order count when it hits a milestone.
type Milestone struct {
	Count int `json:"count"`
}

// Created is the answer to a new order.
type Created struct {
	View
	Milestone *Milestone `json:"milestone"`
}

func (c Created) MarshalJSON() ([]byte, error) {
	milestone, err := json.Marshal(c.Milestone)
	if err != nil {
		return nil, err
	}
	return order.WithMembers(c.View, order.Extra{"milestone": milestone})
}

// Service manages orders and the views derived from them.
type Service struct {
	store    order.Store
	perms    Permissions
	audit    audit.Notifier
	validate *validator.Validate
	now      func() time.Time

	// mu serialises writes so sale numbers stay unique.
	mu sync.Mutex
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store order.Store, perms Permissions, notifier audit.Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		perms:    perms,
		audit:    notifier,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func view(o order.Order) View {
	return View{Order: o, Gelir: o.Profit()}
}

// List returns every order with its profit.
func (s *Service) List(ctx context.Context) ([]View, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return lo.Map(orders, func(o order.Order, _ int) View { return view(o) }), nil
}

// Create stores a new order under the next sale number. Sale number,
// creation time and creator are always set by the server.
func (s *Service) Create(ctx context.Context, actor user.Identity, payload []byte) (Created, error) {
	var o order.Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return Created{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.validate.Var(strings.TrimSpace(o.Tourist), "required"); err != nil {
		return Created{}, fmt.Errorf("%w: turist is required", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.store.List(ctx)
	if err != nil {
		return Created{}, fmt.Errorf("list orders: %w", err)
	}

	dropComputed(&o)
	o.SaleNo = strconv.Itoa(nextSaleNo(orders))
	o.CreatedAt = s.now().UTC().Format(timestampLayout)
	o.CreatedBy = actor.Username
	if o.PaymentStatus == "" {
		o.PaymentStatus = order.StatusUnpaid
	}
	if o.PaymentDueDate != nil && *o.PaymentDueDate == "" {
		o.PaymentDueDate = nil
	}
	if err := s.store.Save(ctx, o); err != nil {
		return Created{}, fmt.Errorf("save order: %w", err)
	}
	s.audit.Notify(actor, fmt.Sprintf("yeni sifariş (№%s) yaratdı: <b>%s</b>", o.SaleNo, html.EscapeString(o.Tourist)))

	count := 1 + lo.CountBy(orders, func(existing order.Order) bool { return existing.CreatedBy == actor.Username })
	out := Created{View: view(o)}
	if lo.Contains(Milestones, count) {
		out.Milestone = &Milestone{Count: count}
		log.Info().Str("user", actor.Username).Int("orders", count).Msg("[order] milestone reached")
	}
	return out, nil
}

func nextSaleNo(orders []order.Order) int {
	numbers := lo.FilterMap(orders, func(o order.Order, _ int) (int, bool) {
		n, err := strconv.Atoi(o.SaleNo)
		return n, err == nil
	})
	if highest := lo.Max(numbers); highest >= FirstSaleNo {
		return highest + 1
	}
	return FirstSaleNo
}

// Update merges patch into the order. Financial fields are dropped from the
// patch unless actor may edit them; the sale number never changes.
func (s *Service) Update(ctx context.Context, actor user.Identity, saleNo string, patch []byte) error {
	perms, err := s.perms.For(ctx, actor)
	if err != nil {
		return err
	}
	if !perms.CanEditOrder {
		return ErrForbidden
	}

	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !perms.CanEditFinancials {
		for _, key := range order.FinancialFields {
			delete(changes, key)
		}
	}
	delete(changes, "satisNo")

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx, saleNo)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	updated, err := merge(current, changes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	updated.SaleNo = current.SaleNo
	if err := s.store.Save(ctx, updated); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	s.audit.Notify(actor, fmt.Sprintf("sifarişə (№%s) düzəliş etdi.", html.EscapeString(saleNo)))
	return nil
}

func merge(current order.Order, changes map[string]json.RawMessage) (order.Order, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return order.Order{}, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return order.Order{}, err
	}
	for k, v := range changes {
		fields[k] = v
	}
	if raw, err = json.Marshal(fields); err != nil {
		return order.Order{}, err
	}
	var out order.Order
	if err := json.Unmarshal(raw, &out); err != nil {
		return order.Order{}, err
	}
	dropComputed(&out)
	return out, nil
}

// dropComputed keeps echoed response members such as gelir out of storage.
func dropComputed(o *order.Order) {
	for _, key := range order.ComputedFields {
		delete(o.Extra, key)
	}
	if len(o.Extra) == 0 {
		o.Extra = nil
	}
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, actor user.Identity, saleNo string) error {
	perms, err := s.perms.For(ctx, actor)
	if err != nil {
		return err
	}
	if !perms.CanDeleteOrder {
		return ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.store.Get(ctx, saleNo); err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if err := s.store.Delete(ctx, saleNo); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	s.audit.Notify(actor, fmt.Sprintf("sifarişi (№%s) sildi.", html.EscapeString(saleNo)))
	return nil
}

// UpdateNote replaces the order note. A nil note means the field was absent.
func (s *Service) UpdateNote(ctx context.Context, actor user.Identity, saleNo string, note *string) error {
	if note == nil {
		return ErrNoteMissing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.store.Get(ctx, saleNo)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	o.Note = *note
	if err := s.store.Save(ctx, o); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	s.audit.Notify(actor, fmt.Sprintf("sifarişin (№%s) qeydini yenilədi.", html.EscapeString(saleNo)))
	return nil
}

// FindByReservation looks an order up by reservation number, ignoring case.
func (s *Service) FindByReservation(ctx context.Context, reservationNo string) (View, error) {
	reservationNo = strings.TrimSpace(reservationNo)
	if reservationNo == "" {
		return View{}, fmt.Errorf("%w: reservation number is empty", ErrInvalid)
	}
	orders, err := s.store.List(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list orders: %w", err)
	}
	found, ok := lo.Find(orders, func(o order.Order) bool {
		return strings.EqualFold(o.ReservationNo, reservationNo)
	})
	if !ok {
		return View{}, order.ErrNotFound
	}
	return view(found), nil
}

// Debts returns unpaid orders sold through a foreign company, optionally
// narrowed to companies whose name contains company.
func (s *Service) Debts(ctx context.Context, company string) ([]order.Order, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return FilterDebts(orders, company), nil
}

// FilterDebts keeps the unpaid foreign company orders of orders. The company
// match ignores case.
func FilterDebts(orders []order.Order, company string) []order.Order {
	company = strings.ToLower(company)
	return lo.Filter(orders, func(o order.Order, _ int) bool {
		if o.ForeignCompany == "" || !o.Unpaid() {
			return false
		}
		return company == "" || strings.Contains(strings.ToLower(o.ForeignCompany), company)
	})
}
