// Package export renders invoices to files in the export directory.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/kingrea/invoicepro/internal/invoice"
)

// ErrExportInProgress is returned when an export is triggered while another
// one is still running.
var ErrExportInProgress = errors.New("export: already in progress")

// Logger records export outcomes.
type Logger interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Exporter writes rendered invoices to dir. At most one export runs at a
// time.
type Exporter struct {
	dir      string
	renderer Renderer
	logger   Logger
	busy     atomic.Bool
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithLogger sets the outcome logger.
func WithLogger(l Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExporter returns an exporter writing renderer output into dir.
func NewExporter(dir string, renderer Renderer, opts ...Option) *Exporter {
	e := &Exporter{dir: dir, renderer: renderer, logger: nopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// InProgress reports whether an export is running.
func (e *Exporter) InProgress() bool {
	return e.busy.Load()
}

// Export renders inv to invoice-<ref|new>.pdf and returns the file path.
func (e *Exporter) Export(ctx context.Context, inv invoice.Invoice) (string, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return "", ErrExportInProgress
	}
	defer e.busy.Store(false)

	path, err := e.write(ctx, inv)
	if err != nil {
		e.logger.Error("Export of invoice %s failed: %v", inv.DisplayRef(), err)
		return "", err
	}
	e.logger.Info("Exported invoice %s to %s", inv.DisplayRef(), path)
	return path, nil
}

func (e *Exporter) write(ctx context.Context, inv invoice.Invoice) (string, error) {
	if e.renderer == nil {
		return "", errors.New("export: no renderer configured")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(e.dir, ".export-*.pdf")
	if err != nil {
		return "", fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := e.renderer.Render(ctx, inv, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("export: close: %w", err)
	}
	path := filepath.Join(e.dir, FileName(inv))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("export: rename: %w", err)
	}
	return path, nil
}

// FileName returns invoice-<ref>.pdf, or invoice-new.pdf when ref is empty.
// Characters that are unsafe in file names become "_".
func FileName(inv invoice.Invoice) string {
	ref := strings.TrimSpace(inv.Ref)
	if ref == "" {
		ref = "new"
	}
	var b strings.Builder
	for _, r := range ref {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case r < 0x20:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), ". ")
	if name == "" {
		name = "new"
	}
	return "invoice-" + name + ".pdf"
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
