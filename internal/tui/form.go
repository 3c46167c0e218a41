package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/invoicepro/internal/invoice"
)

var headerFields = []struct {
	field       invoice.Field
	label       string
	placeholder string
}{
	{invoice.FieldNtnNo, "NTN No", "Enter NTN No."},
	{invoice.FieldRef, "Ref", "Reference No."},
	{invoice.FieldDate, "Date", "YYYY-MM-DD"},
	{invoice.FieldRecipient, "M/s", "Recipient Name / Company"},
}

var itemColumns = []struct {
	field       invoice.ItemField
	placeholder string
	width       int
}{
	{invoice.ItemDescription, "Item description", 32},
	{invoice.ItemQty, "0", 8},
	{invoice.ItemUnitRate, "0.00", 10},
}

// formView holds one text input per editable cell: the header fields first,
// then three per item row.
type formView struct {
	inputs []textinput.Model
	focus  int
}

func newFormView(inv *invoice.Invoice) *formView {
	f := &formView{}
	f.rebuild(inv)
	return f
}

// rebuild recreates the inputs from inv, keeping focus in range.
func (f *formView) rebuild(inv *invoice.Invoice) {
	inputs := make([]textinput.Model, 0, len(headerFields)+len(itemColumns)*len(inv.Items))
	for _, h := range headerFields {
		inputs = append(inputs, newInput(h.placeholder, 30, headerValue(inv, h.field)))
	}
	for _, item := range inv.Items {
		for _, c := range itemColumns {
			inputs = append(inputs, newInput(c.placeholder, c.width, itemValue(item, c.field)))
		}
	}
	f.inputs = inputs
	if f.focus >= len(inputs) {
		f.focus = len(inputs) - 1
	}
	if f.focus < 0 {
		f.focus = 0
	}
	f.applyFocus()
}

func newInput(placeholder string, width int, value string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.Width = width
	ti.SetValue(value)
	return ti
}

func (f *formView) applyFocus() {
	for i := range f.inputs {
		if i == f.focus {
			f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
}

func (f *formView) move(delta int) {
	if len(f.inputs) == 0 {
		return
	}
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.applyFocus()
}

func (f *formView) focusItem(row int) {
	f.focus = len(headerFields) + row*len(itemColumns)
	if f.focus >= len(f.inputs) {
		f.focus = len(f.inputs) - 1
	}
	f.applyFocus()
}

// focusedRow returns the item row under focus, or -1 on a header field.
func (f *formView) focusedRow() int {
	if f.focus < len(headerFields) {
		return -1
	}
	return (f.focus - len(headerFields)) / len(itemColumns)
}

func (f *formView) focusedItemID(inv *invoice.Invoice) string {
	row := f.focusedRow()
	if row < 0 || row >= len(inv.Items) {
		return ""
	}
	return inv.Items[row].ID
}

// update routes navigation keys and forwards the rest to the focused input,
// writing its value back into inv.
func (f *formView) update(msg tea.KeyMsg, inv *invoice.Invoice) tea.Cmd {
	switch msg.String() {
	case "tab", "down", "enter":
		f.move(1)
		return nil
	case "shift+tab", "up":
		f.move(-1)
		return nil
	}
	if len(f.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	f.store(inv)
	return cmd
}

func (f *formView) store(inv *invoice.Invoice) {
	value := f.inputs[f.focus].Value()
	if f.focus < len(headerFields) {
		inv.SetField(headerFields[f.focus].field, value)
		return
	}
	row := f.focusedRow()
	if row >= len(inv.Items) {
		return
	}
	col := (f.focus - len(headerFields)) % len(itemColumns)
	inv.SetItemField(inv.Items[row].ID, itemColumns[col].field, value)
}

func (f *formView) view(inv *invoice.Invoice, width int) string {
	if inv == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("COMMERCIAL INVOICE"))
	b.WriteString("\n\n")
	for i, h := range headerFields {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(h.label+":"), f.inputs[i].View())
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-4s %-32s %8s %10s %12s", "Sno", "Description", "Qty", "Unit Rate", "Amount")))
	b.WriteString("\n")
	for row, item := range inv.Items {
		base := len(headerFields) + row*len(itemColumns)
		marker := "  "
		if f.focusedRow() == row {
			marker = "▸ "
		}
		fmt.Fprintf(&b, "%s%-3d %s %s %s %12s\n",
			marker,
			item.Sno,
			cell(f.inputs[base].View(), 32),
			cell(f.inputs[base+1].View(), 8),
			cell(f.inputs[base+2].View(), 10),
			invoice.FormatAmount(invoice.LineAmount(item)))
	}
	b.WriteString("\n")
	b.WriteString(totalStyle.Render("Total Amount: " + invoice.FormatAmount(inv.Total())))
	box := formStyle
	if width > 4 {
		box = box.MaxWidth(width)
	}
	return box.Render(b.String())
}

func cell(s string, width int) string {
	return lipgloss.NewStyle().Width(width).MaxWidth(width).Render(s)
}

func headerValue(inv *invoice.Invoice, field invoice.Field) string {
	switch field {
	case invoice.FieldNtnNo:
		return inv.NtnNo
	case invoice.FieldRef:
		return inv.Ref
	case invoice.FieldDate:
		return inv.Date
	case invoice.FieldRecipient:
		return inv.Recipient
	}
	return ""
}

func itemValue(item invoice.Item, field invoice.ItemField) string {
	switch field {
	case invoice.ItemDescription:
		return item.Description
	case invoice.ItemQty:
		return strconv.FormatFloat(item.Qty, 'f', -1, 64)
	case invoice.ItemUnitRate:
		return strconv.FormatFloat(item.UnitRate, 'f', -1, 64)
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#DDDDDD"))
	totalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7FD88F"))
	formStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)
