// internal/session/session.go
//
// The coordinator tracks which screen is showing and, while editing, the
// one working copy of the invoice on the form. The working copy is a private
// clone; nothing reaches the ledger until Save.

package session

import (
	"errors"
	"fmt"

	"github.com/kingrea/invoicepro/internal/invoice"
)

// ErrInvalidTransition is returned when an intent does not apply to the
// current screen.
var ErrInvalidTransition = errors.New("session: invalid transition")

// Screen is the coordinator state.
type Screen int

const (
	Listing Screen = iota
	Editing
)

func (s Screen) String() string {
	switch s {
	case Listing:
		return "listing"
	case Editing:
		return "editing"
	default:
		return fmt.Sprintf("screen(%d)", int(s))
	}
}

// Collection is what the coordinator needs from the ledger.
type Collection interface {
	Create() invoice.Invoice
	Edit(id string) (invoice.Invoice, bool)
	Save(draft invoice.Invoice) invoice.Invoice
	Delete(id string) bool
	List() []invoice.Invoice
}

// Confirmer answers a yes/no question. Returning false (including for a
// dismissed prompt) cancels the action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// DeletePrompt is the question asked before an invoice is removed.
const DeletePrompt = "Are you sure you want to delete this invoice?"

// Coordinator is the two-state view machine.
type Coordinator struct {
	collection Collection
	screen     Screen
	working    *invoice.Invoice
}

// New starts on the list screen.
func New(collection Collection) *Coordinator {
	return &Coordinator{collection: collection, screen: Listing}
}

// Screen returns the current state.
func (c *Coordinator) Screen() Screen {
	return c.screen
}

// Invoices lists the committed invoices for the list screen.
func (c *Coordinator) Invoices() []invoice.Invoice {
	return c.collection.List()
}

// Working returns the invoice on the form, or nil when listing. Callers may
// mutate it freely; it is discarded on Cancel.
func (c *Coordinator) Working() *invoice.Invoice {
	if c.screen != Editing {
		return nil
	}
	return c.working
}

// CreateNew opens the form on a fresh draft.
func (c *Coordinator) CreateNew() error {
	if c.screen != Listing {
		return fmt.Errorf("%w: create from %s", ErrInvalidTransition, c.screen)
	}
	draft := c.collection.Create()
	c.enter(draft)
	return nil
}

// EditInvoice opens the form on a copy of invoice id. A missing id leaves
// the list showing and reports false.
func (c *Coordinator) EditInvoice(id string) (bool, error) {
	if c.screen != Listing {
		return false, fmt.Errorf("%w: edit from %s", ErrInvalidTransition, c.screen)
	}
	inv, ok := c.collection.Edit(id)
	if !ok {
		return false, nil
	}
	c.enter(inv)
	return true, nil
}

// Cancel drops the working copy and returns to the list.
func (c *Coordinator) Cancel() error {
	if c.screen != Editing {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, c.screen)
	}
	c.leave()
	return nil
}

// Save commits the working copy through the collection and returns to the
// list.
func (c *Coordinator) Save() (invoice.Invoice, error) {
	if c.screen != Editing {
		return invoice.Invoice{}, fmt.Errorf("%w: save from %s", ErrInvalidTransition, c.screen)
	}
	committed := c.collection.Save(c.working.Clone())
	c.leave()
	return committed, nil
}

// Delete asks confirm before removing invoice id. It reports whether an
// invoice was removed.
func (c *Coordinator) Delete(id string, confirm Confirmer) (bool, error) {
	if c.screen != Listing {
		return false, fmt.Errorf("%w: delete from %s", ErrInvalidTransition, c.screen)
	}
	if confirm == nil || !confirm.Confirm(DeletePrompt) {
		return false, nil
	}
	return c.collection.Delete(id), nil
}

func (c *Coordinator) enter(inv invoice.Invoice) {
	working := inv.Clone()
	if len(working.Items) == 0 {
		working.AddItem()
	}
	c.working = &working
	c.screen = Editing
}

func (c *Coordinator) leave() {
	c.working = nil
	c.screen = Listing
}
