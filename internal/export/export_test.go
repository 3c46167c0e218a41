package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/invoicepro/internal/config"
	"github.com/kingrea/invoicepro/internal/invoice"
)

func sample() invoice.Invoice {
	return invoice.Invoice{
		ID: "inv_1", NtnNo: "1234567-8", Ref: "RW-2026/17", Date: "2026-10-17", Recipient: "Karachi Steel",
		Items: []invoice.Item{
			{ID: "a", Sno: 1, Description: "Gear shaft", Qty: 2, UnitRate: 50},
			{ID: "b", Sno: 2, Description: "Bushing ½ inch", Qty: 4, UnitRate: 12.5},
		},
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"":           "invoice-new.pdf",
		"   ":        "invoice-new.pdf",
		"R-42":       "invoice-R-42.pdf",
		"RW-2026/17": "invoice-RW-2026_17.pdf",
		"a:b*c?":     "invoice-a_b_c_.pdf",
		"..":         "invoice-new.pdf",
	}
	for ref, want := range cases {
		assert.Equal(t, want, FileName(invoice.Invoice{Ref: ref}), "ref %q", ref)
	}
}

func TestPDFRendererWritesDocument(t *testing.T) {
	var buf bytes.Buffer
	r := NewPDFRenderer(config.CompanyConfig{
		Name: "RIZWAN ENGINEERING WORKS", Subtitle: "Parts", Address: "Plot # L-3, Korangi 2½ Karachi",
		Contact: "0312", Email: "a@b.c",
	})
	require.NoError(t, r.Render(context.Background(), sample(), &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

func TestPDFRendererHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPDFRenderer(config.CompanyConfig{}).Render(ctx, sample(), io.Discard)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExportWritesNamedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	e := NewExporter(dir, NewPDFRenderer(config.CompanyConfig{Name: "Test"}))
	path, err := e.Export(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "invoice-RW-2026_17.pdf"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.False(t, e.InProgress())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestExportRejectsConcurrentTrigger(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	renderer := RendererFunc(func(ctx context.Context, inv invoice.Invoice, w io.Writer) error {
		close(started)
		<-release
		_, err := io.WriteString(w, "%PDF-fake")
		return err
	})
	e := NewExporter(t.TempDir(), renderer)

	done := make(chan error, 1)
	go func() {
		_, err := e.Export(context.Background(), sample())
		done <- err
	}()
	<-started
	assert.True(t, e.InProgress())
	_, err := e.Export(context.Background(), sample())
	require.ErrorIs(t, err, ErrExportInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, e.InProgress())
}

type recordingLogger struct{ infos, errors int }

func (r *recordingLogger) Info(string, ...any)  { r.infos++ }
func (r *recordingLogger) Error(string, ...any) { r.errors++ }

func TestExportFailureClearsFlag(t *testing.T) {
	boom := errors.New("renderer exploded")
	logger := &recordingLogger{}
	e := NewExporter(t.TempDir(), RendererFunc(func(context.Context, invoice.Invoice, io.Writer) error {
		return boom
	}), WithLogger(logger))

	_, err := e.Export(context.Background(), invoice.Invoice{})
	require.ErrorIs(t, err, boom)
	assert.False(t, e.InProgress())
	assert.Equal(t, 1, logger.errors)

	_, err = e.Export(context.Background(), invoice.Invoice{})
	require.ErrorIs(t, err, boom, "a failed export must not block the next one")
}
