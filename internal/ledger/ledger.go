// internal/ledger/ledger.go
//
// The ledger owns the authoritative list of invoices for a session. Screens
// get copies; only Save and Delete change the list, and each change is
// handed to the commit observer as a full snapshot.

package ledger

import (
	"strings"
	"time"

	"github.com/kingrea/invoicepro/internal/invoice"
)

// Observer is told about every committed change.
type Observer interface {
	Committed(snapshot []invoice.Invoice)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func([]invoice.Invoice)

// Committed calls f.
func (f ObserverFunc) Committed(snapshot []invoice.Invoice) { f(snapshot) }

// Logger records ledger activity.
type Logger interface {
	Info(format string, args ...any)
}

// Ledger is the in-memory invoice collection.
type Ledger struct {
	invoices []invoice.Invoice
	observer Observer
	logger   Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithObserver sets the commit observer.
func WithObserver(o Observer) Option {
	return func(l *Ledger) {
		l.observer = o
	}
}

// WithLogger sets the activity logger.
func WithLogger(logger Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the clock used for new drafts.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithIDGenerator overrides invoice id generation.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// New creates a ledger seeded with the invoices loaded at startup.
func New(initial []invoice.Invoice, opts ...Option) *Ledger {
	l := &Ledger{
		invoices: cloneAll(initial),
		logger:   nopLogger{},
		now:      time.Now,
		newID:    invoice.NewInvoiceID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Create returns a fresh draft. The draft is not added to the ledger.
func (l *Ledger) Create() invoice.Invoice {
	return invoice.NewDraft(l.now())
}

// Edit returns a copy of the invoice with id for editing.
func (l *Ledger) Edit(id string) (invoice.Invoice, bool) {
	idx := l.indexOf(id)
	if idx < 0 {
		return invoice.Invoice{}, false
	}
	return l.invoices[idx].Clone(), true
}

// Get is an alias of Edit for read-only callers.
func (l *Ledger) Get(id string) (invoice.Invoice, bool) {
	return l.Edit(id)
}

// Save commits draft. A draft without an id gets a new one and is appended;
// otherwise the stored invoice with the same id is replaced wholesale. Items
// missing an id get one, so everything committed survives a reload.
func (l *Ledger) Save(draft invoice.Invoice) invoice.Invoice {
	committed := draft.Clone()
	if committed.Items == nil {
		committed.Items = []invoice.Item{}
	}
	for i := range committed.Items {
		if strings.TrimSpace(committed.Items[i].ID) == "" {
			committed.Items[i].ID = invoice.NewItemID()
		}
	}
	committed.Items = invoice.Renumber(committed.Items)
	if committed.IsDraft() {
		committed.ID = l.uniqueID()
		l.invoices = append(l.invoices, committed)
		l.logger.Info("Invoice %s created (ref %s)", committed.ID, committed.DisplayRef())
	} else if idx := l.indexOf(committed.ID); idx >= 0 {
		l.invoices[idx] = committed
		l.logger.Info("Invoice %s updated (ref %s)", committed.ID, committed.DisplayRef())
	} else {
		l.invoices = append(l.invoices, committed)
		l.logger.Info("Invoice %s restored (ref %s)", committed.ID, committed.DisplayRef())
	}
	l.commit()
	return committed.Clone()
}

// Delete removes the invoice with id. A missing id is a no-op.
func (l *Ledger) Delete(id string) bool {
	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}
	l.invoices = append(l.invoices[:idx:idx], l.invoices[idx+1:]...)
	l.logger.Info("Invoice %s deleted", id)
	l.commit()
	return true
}

// List returns a copy of the collection in insertion order.
func (l *Ledger) List() []invoice.Invoice {
	return cloneAll(l.invoices)
}

// Len returns the number of committed invoices.
func (l *Ledger) Len() int {
	return len(l.invoices)
}

func (l *Ledger) commit() {
	if l.observer == nil {
		return
	}
	l.observer.Committed(cloneAll(l.invoices))
}

func (l *Ledger) uniqueID() string {
	for {
		id := l.newID()
		if id != "" && l.indexOf(id) < 0 {
			return id
		}
	}
}

func (l *Ledger) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range l.invoices {
		if l.invoices[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(src []invoice.Invoice) []invoice.Invoice {
	out := make([]invoice.Invoice, len(src))
	for i := range src {
		out[i] = src[i].Clone()
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) {}
