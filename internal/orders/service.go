package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/franferrer12/intramedia-system-sub001/internal/audit"
	"github.com/franferrer12/intramedia-system-sub001/internal/catalog"
	"github.com/franferrer12/intramedia-system-sub001/internal/dispatch"
	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error)
}

// TxRepository exposes the transactional operations of one mutating call.
// Version-checked methods return ConcurrencyConflictError on a lost update.
type TxRepository interface {
	CreateOrder(ctx context.Context, o Order) (int64, error)
	InsertLine(ctx context.Context, line DetailLine) (int64, error)
	UpdateHeader(ctx context.Context, o Order) error
	ReplaceLines(ctx context.Context, orderID int64, lines []DetailLine) error
	UpdateStatus(ctx context.Context, orderID, version int64, status Status) error
	UpdateReception(ctx context.Context, o Order) error
	MarkDeleted(ctx context.Context, orderID, version int64) error
	ClaimEvent(ctx context.Context, key, module string) error
	AppendAudit(ctx context.Context, e audit.Entry) error
	AppendOutbox(ctx context.Context, cmds []dispatch.Command) error
}

// DispatcherPort nudges committed outbox rows into the delivery queue.
type DispatcherPort interface {
	Flush(ctx context.Context, eventID uuid.UUID)
}

// AuditQueryPort reads the order's history.
type AuditQueryPort interface {
	History(ctx context.Context, orderID int64) ([]audit.Entry, error)
}

// MetricsPort counts domain events. Nil-safe at every call site.
type MetricsPort interface {
	ReceptionApplied()
	OverReceiptRejected()
	ConflictDetected()
}

// Service orchestrates the order lifecycle: load, gate through the state
// machine, run the algorithm, persist with the version check, audit, and
// for receptions enqueue side effects after commit.
type Service struct {
	repo       RepositoryPort
	catalog    catalog.Port
	dispatcher DispatcherPort
	history    AuditQueryPort
	cache      *Cache
	totals     TotalsCalculator
	metrics    MetricsPort
	logger     *slog.Logger
	retries    int
}

// NewService constructs the order service. dispatcher, history, cache and
// metrics may be nil in tests.
func NewService(repo RepositoryPort, cat catalog.Port, dispatcher DispatcherPort, history AuditQueryPort, cache *Cache, totals TotalsCalculator, metrics MetricsPort, logger *slog.Logger, retries int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if retries < 1 {
		retries = 3
	}
	return &Service{
		repo:       repo,
		catalog:    cat,
		dispatcher: dispatcher,
		history:    history,
		cache:      cache,
		totals:     totals,
		metrics:    metrics,
		logger:     logger,
		retries:    retries,
	}
}

// LineInput describes one requested line.
type LineInput struct {
	ProductID int64
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
	Notes     string
}

// CreateInput describes the creation payload.
type CreateInput struct {
	Number       string
	SupplierID   int64
	ExpectedDate time.Time
	Notes        string
	ActorID      int64
	Lines        []LineInput
}

// UpdateDraftInput replaces the editable fields of a DRAFT order.
type UpdateDraftInput struct {
	ExpectedDate time.Time
	Notes        string
	ActorID      int64
	Lines        []LineInput
}

// ReceiveInput describes one reception event. EventID must be unique per
// event; duplicates are rejected without mutation.
type ReceiveInput struct {
	EventID uuid.UUID
	Notes   string
	ActorID int64
	Items   []ReceptionItem
}

// ListFilters narrows the order list.
type ListFilters struct {
	Status     string
	SupplierID int64
	Search     string
	SortBy     string
	SortDir    string
}

// ListItem is one row of the order list projection.
type ListItem struct {
	ID           int64
	Number       string
	SupplierID   int64
	SupplierName string
	Status       Status
	ExpectedDate time.Time
	CreatedAt    time.Time
	Total        decimal.Decimal
}

// Create validates the payload and persists a DRAFT order with computed totals.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if input.SupplierID == 0 {
		return Order{}, shared.NewValidationError("supplier_id", "supplier is required")
	}
	lines, err := s.buildLines(ctx, input.Lines)
	if err != nil {
		return Order{}, err
	}
	if input.Number == "" {
		input.Number = generateNumber("PED")
	}
	order := Order{
		Number:       input.Number,
		SupplierID:   input.SupplierID,
		Status:       StatusDraft,
		CreatedAt:    time.Now(),
		ExpectedDate: input.ExpectedDate,
		CreatedBy:    input.ActorID,
		Notes:        input.Notes,
		Lines:        lines,
	}
	s.totals.Apply(&order)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for i := range order.Lines {
			order.Lines[i].OrderID = id
			lineID, err := tx.InsertLine(ctx, order.Lines[i])
			if err != nil {
				return err
			}
			order.Lines[i].ID = lineID
		}
		return tx.AppendAudit(ctx, s.entry(ctx, audit.Entry{
			OrderID:   id,
			Kind:      audit.KindCreated,
			NewStatus: string(StatusDraft),
			Note:      fmt.Sprintf("order %s created", order.Number),
		}, input.ActorID))
	})
	if err != nil {
		return Order{}, err
	}
	s.bumpCache(ctx)
	return order, nil
}

// UpdateDraft replaces lines and editable header fields while the order is
// still DRAFT, recomputing totals and auditing every tracked-field change.
func (s *Service) UpdateDraft(ctx context.Context, orderID int64, input UpdateDraftInput) (Order, error) {
	before, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if before.Status != StatusDraft {
		return Order{}, &shared.StateTransitionError{OrderID: orderID, From: string(before.Status), Action: "edit"}
	}
	lines, err := s.buildLines(ctx, input.Lines)
	if err != nil {
		return Order{}, err
	}
	after := before
	after.ExpectedDate = input.ExpectedDate
	after.Notes = input.Notes
	after.Lines = lines
	for i := range after.Lines {
		after.Lines[i].OrderID = orderID
	}
	s.totals.Apply(&after)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateHeader(ctx, after); err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, orderID, after.Lines); err != nil {
			return err
		}
		for _, change := range DiffFields(before, after) {
			e := s.entry(ctx, audit.Entry{
				OrderID:   orderID,
				Kind:      audit.KindFieldModified,
				Field:     change.Field,
				PrevValue: change.Prev,
				NewValue:  change.Next,
			}, input.ActorID)
			if err := tx.AppendAudit(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.noteConflict(err)
		return Order{}, err
	}
	after.Version++
	s.bumpCache(ctx)
	return after, nil
}

// Send transitions DRAFT to SENT.
func (s *Service) Send(ctx context.Context, orderID, actorID int64) (Order, error) {
	return s.transition(ctx, orderID, actorID, ActionSend, "")
}

// Confirm transitions SENT to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, orderID, actorID int64) (Order, error) {
	return s.transition(ctx, orderID, actorID, ActionConfirm, "")
}

// MarkInTransit transitions CONFIRMED to IN_TRANSIT.
func (s *Service) MarkInTransit(ctx context.Context, orderID, actorID int64) (Order, error) {
	return s.transition(ctx, orderID, actorID, ActionMarkInTransit, "")
}

// Cancel voids the order. RECEIVED and CANCELLED orders cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, orderID, actorID int64, reason string) (Order, error) {
	note := "cancelled"
	if reason != "" {
		note = "cancelled: " + reason
	}
	return s.transition(ctx, orderID, actorID, ActionCancel, note)
}

// transition performs a status-only mutation with bounded conflict retries.
// Every attempt re-reads fresh state; nothing stale is merged.
func (s *Service) transition(ctx context.Context, orderID, actorID int64, action Action, note string) (Order, error) {
	var updated Order
	err := shared.WithConflictRetry(ctx, s.retries, func(ctx context.Context) error {
		order, err := s.repo.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		decision := IsAllowed(order.Status, action)
		if !decision.Allowed {
			return &shared.StateTransitionError{OrderID: orderID, From: string(order.Status), Action: string(action)}
		}
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.UpdateStatus(ctx, orderID, order.Version, decision.Target); err != nil {
				return err
			}
			return tx.AppendAudit(ctx, s.entry(ctx, audit.Entry{
				OrderID:    orderID,
				Kind:       audit.KindStatusChanged,
				PrevStatus: string(order.Status),
				NewStatus:  string(decision.Target),
				Note:       note,
			}, actorID))
		})
		if err != nil {
			s.noteConflict(err)
			return err
		}
		updated = order
		updated.Status = decision.Target
		updated.Version++
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.bumpCache(ctx)
	return updated, nil
}

// Receive applies one reception event, batch-or-nothing. The loser of a
// concurrent receive sees ConcurrencyConflictError and must re-read; there
// is no automatic retry here.
func (s *Service) Receive(ctx context.Context, orderID int64, input ReceiveInput) (Order, error) {
	if input.EventID == uuid.Nil {
		return Order{}, shared.NewValidationError("event_id", "reception event id is required")
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if decision := IsAllowed(order.Status, ActionReceive); !decision.Allowed {
		return Order{}, &shared.StateTransitionError{OrderID: orderID, From: string(order.Status), Action: string(ActionReceive)}
	}

	working := order
	working.Lines = CloneLines(order.Lines)
	result, err := Reconcile(&working, input.Items, input.ActorID, time.Now())
	if err != nil {
		var over *shared.OverReceiptError
		if errors.As(err, &over) && s.metrics != nil {
			s.metrics.OverReceiptRejected()
		}
		return Order{}, err
	}
	cmds := BuildSideEffects(working, input.EventID, result.Applied)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ClaimEvent(ctx, "reception:"+input.EventID.String(), "orders.receive"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return shared.ErrDuplicateEvent
			}
			return err
		}
		if err := tx.UpdateReception(ctx, working); err != nil {
			return err
		}
		note := fmt.Sprintf("reception %s: %d line(s)", input.EventID, len(result.Applied))
		if input.Notes != "" {
			note += ": " + input.Notes
		}
		if err := tx.AppendAudit(ctx, s.entry(ctx, audit.Entry{
			OrderID:    orderID,
			Kind:       audit.KindStatusChanged,
			PrevStatus: string(result.PreviousStatus),
			NewStatus:  string(result.NewStatus),
			Note:       note,
		}, input.ActorID)); err != nil {
			return err
		}
		return tx.AppendOutbox(ctx, cmds)
	})
	if err != nil {
		s.noteConflict(err)
		return Order{}, err
	}
	working.Version++

	// Outside the order's critical section: delivery failures are retried
	// by the relay and never fail the committed reception.
	if s.dispatcher != nil {
		s.dispatcher.Flush(ctx, input.EventID)
	}
	if s.metrics != nil {
		s.metrics.ReceptionApplied()
	}
	s.bumpCache(ctx)
	return working, nil
}

// Delete logically removes a DRAFT or CANCELLED order.
func (s *Service) Delete(ctx context.Context, orderID, actorID int64) error {
	return shared.WithConflictRetry(ctx, s.retries, func(ctx context.Context) error {
		order, err := s.repo.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if decision := IsAllowed(order.Status, ActionDelete); !decision.Allowed {
			return &shared.StateTransitionError{OrderID: orderID, From: string(order.Status), Action: string(ActionDelete)}
		}
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.MarkDeleted(ctx, orderID, order.Version); err != nil {
				return err
			}
			return tx.AppendAudit(ctx, s.entry(ctx, audit.Entry{
				OrderID:    orderID,
				Kind:       audit.KindDeleted,
				PrevStatus: string(order.Status),
				Note:       fmt.Sprintf("order %s deleted", order.Number),
			}, actorID))
		})
		if err != nil {
			s.noteConflict(err)
			return err
		}
		s.bumpCache(ctx)
		return nil
	})
}

// Get loads one order with its lines.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// List returns the order list, served through the snapshot cache when one
// is configured. Stale reads are acceptable here.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.cache == nil {
		return s.repo.List(ctx, limit, offset, filters)
	}
	type page struct {
		Items []ListItem `json:"items"`
		Total int        `json:"total"`
	}
	key, err := s.cache.BuildKey(ctx, "orders", "list",
		filters.Status, fmt.Sprint(filters.SupplierID), filters.Search,
		filters.SortBy, filters.SortDir, fmt.Sprint(limit), fmt.Sprint(offset))
	if err != nil {
		return s.repo.List(ctx, limit, offset, filters)
	}
	var cached page
	err = s.cache.FetchJSON(ctx, key, &cached, func(ctx context.Context) (any, error) {
		items, total, err := s.repo.List(ctx, limit, offset, filters)
		if err != nil {
			return nil, err
		}
		return page{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return cached.Items, cached.Total, nil
}

// History returns the order's audit trail, oldest first.
func (s *Service) History(ctx context.Context, orderID int64) ([]audit.Entry, error) {
	if s.history == nil {
		return nil, fmt.Errorf("orders: audit query not configured")
	}
	return s.history.History(ctx, orderID)
}

func (s *Service) buildLines(ctx context.Context, inputs []LineInput) ([]DetailLine, error) {
	if len(inputs) == 0 {
		return nil, shared.NewValidationError("lines", "at least one line is required")
	}
	lines := make([]DetailLine, 0, len(inputs))
	for _, in := range inputs {
		if in.ProductID == 0 {
			return nil, shared.NewValidationError("product_id", "product is required")
		}
		if !in.Qty.IsPositive() {
			return nil, shared.NewValidationError("quantity", "quantity must be positive")
		}
		if !in.UnitPrice.IsPositive() {
			return nil, shared.NewValidationError("unit_price", "unit price must be positive")
		}
		line := DetailLine{
			ProductID:  in.ProductID,
			QtyOrdered: in.Qty,
			UnitPrice:  in.UnitPrice,
			Notes:      in.Notes,
		}
		if s.catalog != nil {
			product, err := s.catalog.Resolve(ctx, in.ProductID)
			if err != nil {
				return nil, err
			}
			line.ProductName = product.Name
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Service) entry(ctx context.Context, e audit.Entry, actorID int64) audit.Entry {
	if actorID != 0 {
		e.ActorID = &actorID
	}
	meta := shared.RequestMetaFromContext(ctx)
	e.OriginIP = meta.OriginIP
	e.UserAgent = meta.UserAgent
	return e
}

func (s *Service) noteConflict(err error) {
	if shared.IsConflict(err) && s.metrics != nil {
		s.metrics.ConflictDetected()
	}
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("order cache bump", slog.Any("error", err))
	}
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
