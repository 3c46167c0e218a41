// internal/invoice/invoice.go
//
// Invoice and item definitions plus the derived values (line amount, total)
// that every screen and the PDF export read from. Nothing in here touches
// storage; callers own the values they pass around.

package invoice

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format stored in Invoice.Date.
const DateLayout = "2006-01-02"

// Placeholder is shown wherever an optional text field is blank.
const Placeholder = "N/A"

// Item is one line on an invoice.
type Item struct {
	ID          string  `json:"id"`
	Sno         int     `json:"sno"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitRate    float64 `json:"unitRate"`
}

// Invoice is a commercial invoice. An empty ID marks a draft that has never
// been committed to the collection.
type Invoice struct {
	ID        string `json:"id"`
	NtnNo     string `json:"ntnNo"`
	Ref       string `json:"ref"`
	Date      string `json:"date"`
	Recipient string `json:"recipient"`
	Items     []Item `json:"items"`
}

// Field names a header field that can be edited on the form.
type Field string

const (
	FieldNtnNo     Field = "ntnNo"
	FieldRef       Field = "ref"
	FieldDate      Field = "date"
	FieldRecipient Field = "recipient"
)

// ItemField names an editable column of an item row.
type ItemField string

const (
	ItemDescription ItemField = "description"
	ItemQty         ItemField = "qty"
	ItemUnitRate    ItemField = "unitRate"
)

// LineAmount returns qty * unitRate. Inputs are expected to be coerced already.
func LineAmount(item Item) float64 {
	return item.Qty * item.UnitRate
}

// Total sums the line amounts in sequence order.
func Total(inv Invoice) float64 {
	var total float64
	for _, item := range inv.Items {
		total += LineAmount(item)
	}
	return total
}

// FormatAmount renders v with exactly two decimal places.
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// CoerceNumeric parses user input as a float. Anything that is not a finite
// number becomes 0.
func CoerceNumeric(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Renumber assigns sno 1..n in the current order. The input slice is not
// modified.
func Renumber(items []Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		item.Sno = i + 1
		out[i] = item
	}
	return out
}

// IsDense reports whether sno values already run 1..n in order.
func IsDense(items []Item) bool {
	for i, item := range items {
		if item.Sno != i+1 {
			return false
		}
	}
	return true
}

// NewItem returns a blank item with a fresh id.
func NewItem(sno int) Item {
	return Item{ID: NewItemID(), Sno: sno, Qty: 1}
}

// NewDraft returns an uncommitted invoice dated now with one blank item.
func NewDraft(now time.Time) Invoice {
	return Invoice{
		Date:  now.Format(DateLayout),
		Items: []Item{NewItem(1)},
	}
}

// IsDraft reports whether the invoice has not been committed yet.
func (inv Invoice) IsDraft() bool {
	return strings.TrimSpace(inv.ID) == ""
}

// Total is a convenience wrapper over the package-level Total.
func (inv Invoice) Total() float64 {
	return Total(inv)
}

// Clone returns a deep copy so edits never alias the source.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.Items != nil {
		out.Items = make([]Item, len(inv.Items))
		copy(out.Items, inv.Items)
	}
	return out
}

// DisplayRef returns the reference or the placeholder when blank.
func (inv Invoice) DisplayRef() string {
	return orPlaceholder(inv.Ref)
}

// DisplayRecipient returns the recipient or the placeholder when blank.
func (inv Invoice) DisplayRecipient() string {
	return orPlaceholder(inv.Recipient)
}

// AddItem appends a blank row and returns it.
func (inv *Invoice) AddItem() Item {
	item := NewItem(len(inv.Items) + 1)
	inv.Items = Renumber(append(inv.Items, item))
	return inv.Items[len(inv.Items)-1]
}

// RemoveItem drops the row with the given id and renumbers the rest. It
// reports whether a row was removed.
func (inv *Invoice) RemoveItem(id string) bool {
	kept := make([]Item, 0, len(inv.Items))
	removed := false
	for _, item := range inv.Items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return false
	}
	inv.Items = Renumber(kept)
	return true
}

// SetField updates a header field. Unknown fields are ignored.
func (inv *Invoice) SetField(field Field, value string) bool {
	switch field {
	case FieldNtnNo:
		inv.NtnNo = value
	case FieldRef:
		inv.Ref = value
	case FieldDate:
		inv.Date = value
	case FieldRecipient:
		inv.Recipient = value
	default:
		return false
	}
	return true
}

// SetItemField updates one column of the row with the given id. Numeric
// columns go through CoerceNumeric.
func (inv *Invoice) SetItemField(id string, field ItemField, raw string) bool {
	for i := range inv.Items {
		if inv.Items[i].ID != id {
			continue
		}
		switch field {
		case ItemDescription:
			inv.Items[i].Description = raw
		case ItemQty:
			inv.Items[i].Qty = CoerceNumeric(raw)
		case ItemUnitRate:
			inv.Items[i].UnitRate = CoerceNumeric(raw)
		default:
			return false
		}
		return true
	}
	return false
}

func orPlaceholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return Placeholder
	}
	return value
}
