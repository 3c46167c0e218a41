// internal/tui/app.go
//
// This is the TUI for invoicepro. It uses bubbletea, which follows The Elm
// Architecture:
//
// 1. Model: the App, wrapping the session coordinator
// 2. Update: keys become coordinator intents
// 3. View: the list or the form, plus the log panel
//
// The coordinator owns the screen state; the App only mirrors it into widgets.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/invoicepro/internal/export"
	"github.com/kingrea/invoicepro/internal/invoice"
	"github.com/kingrea/invoicepro/internal/logbook"
	"github.com/kingrea/invoicepro/internal/session"
)

// Exporter renders the invoice on the form to a file.
type Exporter interface {
	Export(ctx context.Context, inv invoice.Invoice) (string, error)
	InProgress() bool
}

// SaveReporter reports the outcome of the most recent background write.
type SaveReporter interface {
	LastError() error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithExporter enables ctrl+p on the form.
func WithExporter(e Exporter) AppOption {
	return func(a *App) {
		if e != nil {
			a.exporter = e
		}
	}
}

// WithSaveReporter shows failed background writes on the status line.
func WithSaveReporter(r SaveReporter) AppOption {
	return func(a *App) {
		a.saves = r
	}
}

// WithLogbook shows the journal tail under the main content.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

type exportFinishedMsg struct {
	path string
	err  error
}

// invoiceItem implements list.Item for a committed invoice.
type invoiceItem struct {
	inv invoice.Invoice
}

func (i invoiceItem) Title() string { return "Ref: " + i.inv.DisplayRef() }
func (i invoiceItem) Description() string {
	return fmt.Sprintf("To: %s on %s · %s", i.inv.DisplayRecipient(), i.inv.Date, invoice.FormatAmount(i.inv.Total()))
}
func (i invoiceItem) FilterValue() string { return i.inv.Ref + " " + i.inv.Recipient }

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	session  *session.Coordinator
	exporter Exporter
	saves    SaveReporter
	logbook  *logbook.Logbook

	invoices list.Model
	form     *formView

	// id awaiting a y/n answer on the list screen
	confirmDelete string
	exporting     bool

	statusMsg string
	err       error

	width  int
	height int
}

// NewApp creates the TUI over coordinator.
func NewApp(coordinator *session.Coordinator, opts ...AppOption) *App {
	invoices := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	invoices.Title = "Saved Invoices"
	invoices.SetShowStatusBar(false)
	invoices.SetFilteringEnabled(false)
	invoices.SetShowHelp(false)

	a := &App{
		session:  coordinator,
		invoices: invoices,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.refreshList()
	return a
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.invoices.SetSize(max(0, msg.Width-4), max(0, msg.Height-14))
		return a, nil

	case exportFinishedMsg:
		a.exporting = false
		if msg.err != nil {
			a.err = msg.err
			a.statusMsg = "Export failed"
		} else {
			a.err = nil
			a.statusMsg = "Saved " + msg.path
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.session.Screen() == session.Editing {
			return a.updateForm(msg)
		}
		return a.updateList(msg)
	}

	if a.session.Screen() == session.Listing {
		var cmd tea.Cmd
		a.invoices, cmd = a.invoices.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.confirmDelete != "" {
		return a.answerDelete(msg.String())
	}
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "n":
		if err := a.session.CreateNew(); err != nil {
			a.err = err
			return a, nil
		}
		a.openForm()
		return a, nil
	case "enter", "e":
		id := a.selectedID()
		if id == "" {
			return a, nil
		}
		ok, err := a.session.EditInvoice(id)
		if err != nil {
			a.err = err
			return a, nil
		}
		if !ok {
			a.statusMsg = "Invoice no longer exists"
			a.refreshList()
			return a, nil
		}
		a.openForm()
		return a, nil
	case "d":
		if id := a.selectedID(); id != "" {
			a.confirmDelete = id
			a.statusMsg = session.DeletePrompt + " (y/n)"
		}
		return a, nil
	}
	var cmd tea.Cmd
	a.invoices, cmd = a.invoices.Update(msg)
	return a, cmd
}

func (a *App) answerDelete(key string) (tea.Model, tea.Cmd) {
	var answer bool
	switch key {
	case "y", "Y":
		answer = true
	case "n", "N", "esc":
		answer = false
	default:
		return a, nil
	}
	id := a.confirmDelete
	a.confirmDelete = ""
	removed, err := a.session.Delete(id, session.ConfirmFunc(func(string) bool { return answer }))
	switch {
	case err != nil:
		a.err = err
	case removed:
		a.statusMsg = "Invoice deleted"
	default:
		a.statusMsg = ""
	}
	a.refreshList()
	return a, nil
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	working := a.session.Working()
	switch msg.String() {
	case "esc":
		if err := a.session.Cancel(); err != nil {
			a.err = err
			return a, nil
		}
		a.closeForm("")
		return a, nil
	case "ctrl+s":
		saved, err := a.session.Save()
		if err != nil {
			a.err = err
			return a, nil
		}
		a.closeForm(fmt.Sprintf("Saved invoice %s", saved.DisplayRef()))
		return a, nil
	case "ctrl+a":
		working.AddItem()
		a.form.rebuild(working)
		a.form.focusItem(len(working.Items) - 1)
		return a, nil
	case "ctrl+d":
		if id := a.form.focusedItemID(working); id != "" {
			working.RemoveItem(id)
			a.form.rebuild(working)
		}
		return a, nil
	case "ctrl+p":
		return a, a.startExport(working)
	}
	return a, a.form.update(msg, working)
}

func (a *App) startExport(working *invoice.Invoice) tea.Cmd {
	if a.exporter == nil {
		a.statusMsg = "Export is not configured"
		return nil
	}
	if a.exporting || a.exporter.InProgress() {
		return nil
	}
	a.exporting = true
	a.statusMsg = ""
	snapshot := working.Clone()
	exporter := a.exporter
	return func() tea.Msg {
		path, err := exporter.Export(context.Background(), snapshot)
		return exportFinishedMsg{path: path, err: err}
	}
}

func (a *App) openForm() {
	a.err = nil
	a.statusMsg = ""
	a.form = newFormView(a.session.Working())
}

func (a *App) closeForm(status string) {
	a.form = nil
	a.err = nil
	a.statusMsg = status
	a.refreshList()
}

func (a *App) refreshList() {
	all := a.session.Invoices()
	items := make([]list.Item, 0, len(all))
	for _, inv := range all {
		items = append(items, invoiceItem{inv: inv})
	}
	a.invoices.SetItems(items)
}

func (a *App) selectedID() string {
	item, ok := a.invoices.SelectedItem().(invoiceItem)
	if !ok {
		return ""
	}
	return item.inv.ID
}

// View renders the current state to a string.
func (a *App) View() string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		MarginBottom(1).
		Render("Invoice Pro")
	var content string
	if a.session.Screen() == session.Editing && a.form != nil {
		content = a.form.view(a.session.Working(), a.width)
	} else {
		content = a.renderList()
	}
	parts := []string{header, content, a.renderStatus(), a.renderHelp()}
	if panel := a.renderLogPanel(); panel != "" {
		parts = append(parts, panel)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a *App) renderList() string {
	if len(a.invoices.Items()) == 0 {
		return mutedStyle.Render("You have no saved invoices.\nPress n to create a new invoice.")
	}
	return a.invoices.View()
}

func (a *App) renderStatus() string {
	var lines []string
	if a.saves != nil {
		if err := a.saves.LastError(); err != nil {
			lines = append(lines, errorStyle.Render("Changes not saved to storage: "+err.Error()))
		}
	}
	switch {
	case a.err != nil:
		msg := a.err.Error()
		if errors.Is(a.err, export.ErrExportInProgress) {
			msg = "Export already running"
		}
		lines = append(lines, errorStyle.Render(msg))
	case a.statusMsg != "":
		lines = append(lines, statusStyle.Render(a.statusMsg))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderHelp() string {
	if a.session.Screen() == session.Editing {
		exportLabel := "ctrl+p download pdf"
		if a.exporting {
			exportLabel = "Generating..."
		}
		return helpStyle.Render(strings.Join([]string{
			"tab/shift+tab move", "ctrl+a add item", "ctrl+d remove item", "ctrl+s save", exportLabel, "esc back to list",
		}, " · "))
	}
	if a.confirmDelete != "" {
		return helpStyle.Render("y delete · n keep")
	}
	return helpStyle.Render("n new · enter/e edit · d delete · q quit")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, _ := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

var (
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FD88F"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).MarginTop(1)
)
