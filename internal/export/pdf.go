package export

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/kingrea/invoicepro/internal/config"
	"github.com/kingrea/invoicepro/internal/invoice"
)

// Renderer turns an invoice into a printable document.
type Renderer interface {
	Render(ctx context.Context, inv invoice.Invoice, w io.Writer) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, inv invoice.Invoice, w io.Writer) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, inv invoice.Invoice, w io.Writer) error {
	return f(ctx, inv, w)
}

const (
	pageMargin = 15.0
	lineHeight = 7.0
)

// column widths in mm for Sno, Description, Qty, Unit Rate, Amount
var columns = [5]float64{15, 85, 20, 30, 30}

// PDFRenderer lays the invoice out on a fixed-width A4 page with the
// company letterhead on top.
type PDFRenderer struct {
	Company config.CompanyConfig
}

// NewPDFRenderer returns a renderer printing company as the letterhead.
func NewPDFRenderer(company config.CompanyConfig) *PDFRenderer {
	return &PDFRenderer{Company: company}
}

// Render implements Renderer.
func (r *PDFRenderer) Render(ctx context.Context, inv invoice.Invoice, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle("Invoice "+inv.DisplayRef(), true)
	pdf.SetCreator("invoicepro", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	width, _ := pdf.GetPageSize()
	content := width - 2*pageMargin

	pdf.SetFont("Times", "B", 22)
	pdf.CellFormat(content, 10, tr(r.Company.Name), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(content, 6, tr(r.Company.Subtitle+" NTN No: "+inv.NtnNo), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	contact := fmt.Sprintf("%s | Contact: %s | Email: %s", r.Company.Address, r.Company.Contact, r.Company.Email)
	pdf.CellFormat(content, 6, tr(contact), "B", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Times", "B", 16)
	pdf.CellFormat(content, 10, "COMMERCIAL INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	half := content / 2
	pdf.CellFormat(half, lineHeight, tr("Ref: "+inv.Ref), "", 0, "L", false, 0, "")
	pdf.CellFormat(half, lineHeight, tr("Date: "+inv.Date), "", 1, "L", false, 0, "")
	pdf.CellFormat(content, lineHeight, tr("M/s: "+inv.Recipient), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	headers := [5]string{"Sno", "Description", "Qty", "Unit Rate", "Amount"}
	aligns := [5]string{"C", "L", "R", "R", "R"}
	for i, h := range headers {
		pdf.CellFormat(columns[i], lineHeight, h, "1", 0, aligns[i], true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, item := range inv.Items {
		cells := [5]string{
			strconv.Itoa(item.Sno),
			tr(item.Description),
			strconv.FormatFloat(item.Qty, 'f', -1, 64),
			strconv.FormatFloat(item.UnitRate, 'f', -1, 64),
			invoice.FormatAmount(invoice.LineAmount(item)),
		}
		for i, c := range cells {
			pdf.CellFormat(columns[i], lineHeight, c, "1", 0, aligns[i], false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(content-columns[4], lineHeight, "Total Amount:", "", 0, "R", false, 0, "")
	pdf.CellFormat(columns[4], lineHeight, invoice.FormatAmount(inv.Total()), "", 1, "R", false, 0, "")

	pdf.Ln(20)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(content, lineHeight, "Sign:", "", 1, "L", false, 0, "")
	pdf.Ln(14)
	y := pdf.GetY()
	pdf.Line(pageMargin, y, pageMargin+half, y)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("export: render pdf: %w", err)
	}
	return nil
}
