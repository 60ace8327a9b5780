package orders

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/franferrer12/intramedia-system-sub001/internal/audit"
)

const dateLayout = "2006-01-02"

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Notes     string          `json:"notes"`
}

type createOrderRequest struct {
	Number       string        `json:"number"`
	SupplierID   int64         `json:"supplier_id" validate:"required"`
	ExpectedDate string        `json:"expected_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        string        `json:"notes"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updateOrderRequest struct {
	ExpectedDate string        `json:"expected_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        string        `json:"notes"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type receiveLineRequest struct {
	LineID int64           `json:"line_id" validate:"required"`
	Qty    decimal.Decimal `json:"qty"`
	Notes  string          `json:"notes"`
}

type receiveRequest struct {
	EventID string               `json:"event_id" validate:"required,uuid"`
	Notes   string               `json:"notes"`
	Lines   []receiveLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type lineResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	QtyOrdered  decimal.Decimal `json:"qty_ordered"`
	QtyReceived decimal.Decimal `json:"qty_received"`
	Pending     decimal.Decimal `json:"pending"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Complete    bool            `json:"complete"`
	Partial     bool            `json:"partial"`
	Notes       string          `json:"notes,omitempty"`
}

type orderResponse struct {
	ID                int64           `json:"id"`
	Number            string          `json:"number"`
	SupplierID        int64           `json:"supplier_id"`
	SupplierName      string          `json:"supplier_name,omitempty"`
	Status            Status          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	ExpectedDate      string          `json:"expected_date,omitempty"`
	ReceivedDate      *time.Time      `json:"received_date,omitempty"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	Total             decimal.Decimal `json:"total"`
	DisplayTotal      string          `json:"display_total"`
	CreatedBy         int64           `json:"created_by"`
	ReceivedBy        int64           `json:"received_by,omitempty"`
	ExpenseTxID       string          `json:"expense_tx_id,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	Version           int64           `json:"version"`
	Editable          bool            `json:"editable"`
	Receivable        bool            `json:"receivable"`
	Cancellable       bool            `json:"cancellable"`
	Deletable         bool            `json:"deletable"`
	FullyReceived     bool            `json:"fully_received"`
	PartiallyReceived bool            `json:"partially_received"`
	Lines             []lineResponse  `json:"lines"`
}

type listItemResponse struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	SupplierID   int64           `json:"supplier_id"`
	SupplierName string          `json:"supplier_name,omitempty"`
	Status       Status          `json:"status"`
	ExpectedDate string          `json:"expected_date,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Total        decimal.Decimal `json:"total"`
	DisplayTotal string          `json:"display_total"`
}

type listResponse struct {
	Items  []listItemResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type historyEntryResponse struct {
	ID         int64     `json:"id"`
	ActorID    *int64    `json:"actor_id,omitempty"`
	Kind       string    `json:"kind"`
	PrevStatus string    `json:"prev_status,omitempty"`
	NewStatus  string    `json:"new_status,omitempty"`
	Field      string    `json:"field,omitempty"`
	PrevValue  string    `json:"prev_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	Note       string    `json:"note,omitempty"`
	OriginIP   string    `json:"origin_ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	At         time.Time `json:"at"`
}

// moneyPrinter renders display amounts for the Spanish locale the agency
// operates in.
var moneyPrinter = message.NewPrinter(language.Spanish)

func formatMoney(amount decimal.Decimal) string {
	value, _ := amount.Float64()
	return moneyPrinter.Sprintf("%.2f €", value)
}

func newOrderResponse(o Order) orderResponse {
	view := NewView(o)
	resp := orderResponse{
		ID:                o.ID,
		Number:            o.Number,
		SupplierID:        o.SupplierID,
		SupplierName:      o.SupplierName,
		Status:            o.Status,
		CreatedAt:         o.CreatedAt,
		Subtotal:          o.Subtotal,
		TaxAmount:         o.TaxAmount,
		Total:             o.Total,
		DisplayTotal:      formatMoney(o.Total),
		CreatedBy:         o.CreatedBy,
		ReceivedBy:        o.ReceivedBy,
		ExpenseTxID:       o.ExpenseTxID,
		Notes:             o.Notes,
		Version:           o.Version,
		Editable:          view.Editable,
		Receivable:        view.Receivable,
		Cancellable:       view.Cancellable,
		Deletable:         view.Deletable,
		FullyReceived:     view.FullyReceived,
		PartiallyReceived: view.PartiallyReceived,
		Lines:             make([]lineResponse, 0, len(o.Lines)),
	}
	if !o.ExpectedDate.IsZero() {
		resp.ExpectedDate = o.ExpectedDate.Format(dateLayout)
	}
	if !o.ReceivedDate.IsZero() {
		received := o.ReceivedDate
		resp.ReceivedDate = &received
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			QtyOrdered:  l.QtyOrdered,
			QtyReceived: l.QtyReceived,
			Pending:     l.Pending(),
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
			Complete:    l.Complete(),
			Partial:     l.Partial(),
			Notes:       l.Notes,
		})
	}
	return resp
}

func newListResponse(items []ListItem, total, limit, offset int) listResponse {
	resp := listResponse{Items: make([]listItemResponse, 0, len(items)), Total: total, Limit: limit, Offset: offset}
	for _, item := range items {
		row := listItemResponse{
			ID:           item.ID,
			Number:       item.Number,
			SupplierID:   item.SupplierID,
			SupplierName: item.SupplierName,
			Status:       item.Status,
			CreatedAt:    item.CreatedAt,
			Total:        item.Total,
			DisplayTotal: formatMoney(item.Total),
		}
		if !item.ExpectedDate.IsZero() && item.ExpectedDate.Year() > 1970 {
			row.ExpectedDate = item.ExpectedDate.Format(dateLayout)
		}
		resp.Items = append(resp.Items, row)
	}
	return resp
}

func newHistoryResponse(entries []audit.Entry) []historyEntryResponse {
	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Kind:       string(e.Kind),
			PrevStatus: e.PrevStatus,
			NewStatus:  e.NewStatus,
			Field:      e.Field,
			PrevValue:  e.PrevValue,
			NewValue:   e.NewValue,
			Note:       e.Note,
			OriginIP:   e.OriginIP,
			UserAgent:  e.UserAgent,
			At:         e.At,
		})
	}
	return out
}
