// internal/persist/synchronizer.go
//
// Moves the invoice collection between memory and the key-value store. The
// whole collection lives under one key and is rewritten on every change.
// Nothing in here returns an error to callers: a corrupt or unwritable store
// is logged and the session keeps running on its in-memory copy.

package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/invoicepro/internal/invoice"
	"github.com/kingrea/invoicepro/internal/store"
)

const (
	// Key is the single well-known key the collection is stored under.
	Key = "invoices"

	// SchemaVersion is written into every stored document.
	SchemaVersion = 1
)

// Logger receives load and save failures.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// document is the stored envelope.
type document struct {
	Version  int               `json:"version"`
	Invoices []json.RawMessage `json:"invoices"`
}

type savedDocument struct {
	Version  int               `json:"version"`
	Invoices []invoice.Invoice `json:"invoices"`
}

// Synchronizer loads and saves the invoice collection.
type Synchronizer struct {
	kv      store.KV
	logger  Logger
	timeout time.Duration

	mu      sync.Mutex
	lastErr error
}

// Option customizes a Synchronizer.
type Option func(*Synchronizer)

// WithLogger routes failures to l.
func WithLogger(l Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout bounds each store call.
func WithTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New builds a synchronizer over kv.
func New(kv store.KV, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		kv:      kv,
		logger:  nopLogger{},
		timeout: store.DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load reads the collection. A missing key yields an empty collection; so
// does a document that cannot be parsed. Individual records that fail
// validation are dropped and the rest are kept.
func (s *Synchronizer) Load(ctx context.Context) []invoice.Invoice {
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.kv.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("Load failed: %v", err)
		}
		return []invoice.Invoice{}
	}
	invoices, err := s.decode([]byte(raw))
	if err != nil {
		s.logger.Error("Stored invoices are unreadable, starting empty: %v", err)
		return []invoice.Invoice{}
	}
	s.logger.Info("Loaded %d invoice(s)", len(invoices))
	return invoices
}

// Save writes the full collection. A failed write is logged and remembered
// for LastError; the caller's in-memory state stays authoritative.
func (s *Synchronizer) Save(ctx context.Context, invoices []invoice.Invoice) {
	err := s.save(ctx, invoices)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("Save failed, changes kept in memory only: %v", err)
	}
}

// LastError reports the outcome of the most recent Save.
func (s *Synchronizer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Synchronizer) save(ctx context.Context, invoices []invoice.Invoice) error {
	if invoices == nil {
		invoices = []invoice.Invoice{}
	}
	encoded, err := Encode(invoices)
	if err != nil {
		return err
	}
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.kv.Set(ctx, Key, string(encoded)); err != nil {
		return fmt.Errorf("persist: write %s: %w", Key, err)
	}
	return nil
}

// Encode renders the stored envelope for invoices.
func Encode(invoices []invoice.Invoice) ([]byte, error) {
	normalized := make([]invoice.Invoice, len(invoices))
	for i, inv := range invoices {
		if inv.Items == nil {
			inv.Items = []invoice.Item{}
		}
		normalized[i] = inv
	}
	encoded, err := json.Marshal(savedDocument{Version: SchemaVersion, Invoices: normalized})
	if err != nil {
		return nil, fmt.Errorf("persist: encode invoices: %w", err)
	}
	return encoded, nil
}

func (s *Synchronizer) decode(data []byte) ([]invoice.Invoice, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("persist: empty document")
	}
	var records []json.RawMessage
	switch trimmed[0] {
	case '[':
		// Bare arrays were written before the envelope existed.
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("persist: parse legacy collection: %w", err)
		}
	case '{':
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("persist: parse document: %w", err)
		}
		if doc.Version != SchemaVersion {
			return nil, fmt.Errorf("persist: unsupported schema version %d", doc.Version)
		}
		if doc.Invoices == nil {
			return nil, fmt.Errorf("persist: document has no invoices array")
		}
		records = doc.Invoices
	default:
		return nil, fmt.Errorf("persist: document is not a collection")
	}

	invoices := make([]invoice.Invoice, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for idx, record := range records {
		inv, err := decodeRecord(record)
		if err != nil {
			s.logger.Warn("Dropped stored invoice #%d: %v", idx+1, err)
			continue
		}
		if _, dup := seen[inv.ID]; dup {
			s.logger.Warn("Dropped stored invoice #%d: duplicate id %s", idx+1, inv.ID)
			continue
		}
		seen[inv.ID] = struct{}{}
		if !invoice.IsDense(inv.Items) {
			s.logger.Warn("Renumbered items of invoice %s", inv.ID)
			inv.Items = invoice.Renumber(inv.Items)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// rawItem and rawInvoice use pointers so a missing field can be told apart
// from a zero value.
type rawItem struct {
	ID          *string  `json:"id"`
	Sno         *int     `json:"sno"`
	Description *string  `json:"description"`
	Qty         *float64 `json:"qty"`
	UnitRate    *float64 `json:"unitRate"`
}

type rawInvoice struct {
	ID        *string    `json:"id"`
	NtnNo     *string    `json:"ntnNo"`
	Ref       *string    `json:"ref"`
	Date      *string    `json:"date"`
	Recipient *string    `json:"recipient"`
	Items     *[]rawItem `json:"items"`
}

func decodeRecord(data json.RawMessage) (invoice.Invoice, error) {
	var raw rawInvoice
	if err := json.Unmarshal(data, &raw); err != nil {
		return invoice.Invoice{}, err
	}
	if raw.ID == nil || strings.TrimSpace(*raw.ID) == "" {
		return invoice.Invoice{}, fmt.Errorf("id is required")
	}
	if raw.Items == nil {
		return invoice.Invoice{}, fmt.Errorf("items is required")
	}
	inv := invoice.Invoice{
		ID:        *raw.ID,
		NtnNo:     deref(raw.NtnNo),
		Ref:       deref(raw.Ref),
		Date:      deref(raw.Date),
		Recipient: deref(raw.Recipient),
		Items:     make([]invoice.Item, 0, len(*raw.Items)),
	}
	for i, item := range *raw.Items {
		if item.ID == nil || strings.TrimSpace(*item.ID) == "" {
			return invoice.Invoice{}, fmt.Errorf("items[%d]: id is required", i)
		}
		if item.Qty == nil || item.UnitRate == nil {
			return invoice.Invoice{}, fmt.Errorf("items[%d]: qty and unitRate are required", i)
		}
		sno := 0
		if item.Sno != nil {
			sno = *item.Sno
		}
		inv.Items = append(inv.Items, invoice.Item{
			ID:          *item.ID,
			Sno:         sno,
			Description: deref(item.Description),
			Qty:         *item.Qty,
			UnitRate:    *item.UnitRate,
		})
	}
	return inv, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
