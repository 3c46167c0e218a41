package session

import (
	"errors"
	"testing"

	"github.com/kingrea/invoicepro/internal/invoice"
	"github.com/kingrea/invoicepro/internal/ledger"
)

func newCoordinator(seed ...invoice.Invoice) (*Coordinator, *ledger.Ledger) {
	l := ledger.New(seed)
	return New(l), l
}

func TestCreateNewThenCancelDiscardsDraft(t *testing.T) {
	c, l := newCoordinator()
	if c.Screen() != Listing || c.Working() != nil {
		t.Fatalf("coordinator must start on the list")
	}
	if err := c.CreateNew(); err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	if c.Screen() != Editing {
		t.Fatalf("screen = %s, want editing", c.Screen())
	}
	w := c.Working()
	if w == nil || !w.IsDraft() || len(w.Items) != 1 {
		t.Fatalf("unexpected working copy %+v", w)
	}
	w.SetField(invoice.FieldRef, "R-1")
	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if c.Screen() != Listing || c.Working() != nil {
		t.Fatalf("cancel must return to the list without a working copy")
	}
	if l.Len() != 0 {
		t.Fatalf("cancelled draft leaked into the ledger")
	}
}

func TestSaveCommitsWorkingCopy(t *testing.T) {
	c, l := newCoordinator()
	_ = c.CreateNew()
	w := c.Working()
	w.SetField(invoice.FieldRecipient, "Acme")
	w.SetItemField(w.Items[0].ID, invoice.ItemQty, "3")
	w.SetItemField(w.Items[0].ID, invoice.ItemUnitRate, "10")
	saved, err := c.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if c.Screen() != Listing {
		t.Fatalf("save must return to the list")
	}
	if saved.ID == "" || l.Len() != 1 {
		t.Fatalf("expected committed invoice, got %+v", saved)
	}
	if got := invoice.FormatAmount(c.Invoices()[0].Total()); got != "30.00" {
		t.Fatalf("total = %s", got)
	}
}

func TestEditingDoesNotLeakBeforeSave(t *testing.T) {
	c, l := newCoordinator()
	_ = c.CreateNew()
	saved, _ := c.Save()

	ok, err := c.EditInvoice(saved.ID)
	if err != nil || !ok {
		t.Fatalf("EditInvoice = %v, %v", ok, err)
	}
	c.Working().SetField(invoice.FieldRef, "changed")
	c.Working().AddItem()
	stored, _ := l.Get(saved.ID)
	if stored.Ref != "" || len(stored.Items) != 1 {
		t.Fatalf("working copy leaked: %+v", stored)
	}
	_ = c.Cancel()
	stored, _ = l.Get(saved.ID)
	if stored.Ref != "" {
		t.Fatalf("cancel must discard edits")
	}
}

func TestEditMissingInvoiceStaysOnList(t *testing.T) {
	c, _ := newCoordinator()
	ok, err := c.EditInvoice("missing")
	if err != nil || ok {
		t.Fatalf("EditInvoice(missing) = %v, %v", ok, err)
	}
	if c.Screen() != Listing {
		t.Fatalf("screen = %s", c.Screen())
	}
}

func TestEditInvoiceWithoutItemsStartsWithBlankRow(t *testing.T) {
	c, _ := newCoordinator(invoice.Invoice{ID: "inv_empty", Items: []invoice.Item{}})
	if ok, _ := c.EditInvoice("inv_empty"); !ok {
		t.Fatalf("expected edit to open")
	}
	if len(c.Working().Items) != 1 || c.Working().Items[0].Sno != 1 {
		t.Fatalf("expected one blank item, got %+v", c.Working().Items)
	}
}

func TestInvalidTransitions(t *testing.T) {
	c, _ := newCoordinator()
	if err := c.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel while listing: %v", err)
	}
	if _, err := c.Save(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("save while listing: %v", err)
	}
	_ = c.CreateNew()
	if err := c.CreateNew(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("create while editing: %v", err)
	}
	if _, err := c.EditInvoice("x"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("edit while editing: %v", err)
	}
	if _, err := c.Delete("x", ConfirmFunc(func(string) bool { return true })); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("delete while editing: %v", err)
	}
	if c.Screen() != Editing || c.Working() == nil {
		t.Fatalf("invalid intents must not change state")
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	c, l := newCoordinator()
	_ = c.CreateNew()
	saved, _ := c.Save()

	var asked string
	removed, err := c.Delete(saved.ID, ConfirmFunc(func(prompt string) bool {
		asked = prompt
		return false
	}))
	if err != nil || removed || l.Len() != 1 {
		t.Fatalf("declined delete changed state: removed=%v err=%v", removed, err)
	}
	if asked != DeletePrompt {
		t.Fatalf("prompt = %q", asked)
	}
	if removed, _ := c.Delete(saved.ID, nil); removed {
		t.Fatalf("a missing confirmer counts as dismissal")
	}
	yes := ConfirmFunc(func(string) bool { return true })
	if removed, _ := c.Delete("missing", yes); removed {
		t.Fatalf("deleting a missing id must be a no-op")
	}
	if removed, _ := c.Delete(saved.ID, yes); !removed || l.Len() != 0 {
		t.Fatalf("confirmed delete should remove the invoice")
	}
}

func TestScreenString(t *testing.T) {
	if Listing.String() != "listing" || Editing.String() != "editing" || Screen(9).String() != "screen(9)" {
		t.Fatalf("unexpected screen names")
	}
}
