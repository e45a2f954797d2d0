// Package invoice renders fixed-layout PDF invoices from stored orders.
// Rendering is pure: the document reflects the order record as persisted,
// with no price recomputation.
package invoice

import (
	"bytes"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-pdf/fpdf"

	"github.com/streamcart/streamcart/internal/domain/order"
)

// Renderer produces invoice documents.
type Renderer struct {
	// Merchant is the storefront name printed in the header.
	Merchant string
	// Currency is the symbol or code printed before amounts.
	Currency string
}

// New creates a Renderer.
func New(merchant, currency string) *Renderer {
	return &Renderer{Merchant: merchant, Currency: currency}
}

// Render produces a single-page A4 invoice: header, invoice id and date,
// customer identifier, a plan/amount table, and a total line equal to the
// order's stored amount.
func (r *Renderer) Render(o *order.Order) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice #%d", o.ID), false)
	// Pin document metadata to the order date so the same order always
	// renders byte-identical output.
	pdf.SetCreationDate(o.CreatedAt)
	pdf.SetModificationDate(o.CreatedAt)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, r.Merchant, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Invoice #%d", o.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Date: "+o.CreatedAt.Format("02 Jan 2006"), "", 1, "L", false, 0, "")

	customer := o.UserEmail
	if customer == "" {
		customer = "Guest"
	}
	pdf.CellFormat(0, 7, "Customer: "+customer, "", 1, "L", false, 0, "")
	pdf.Ln(6)

	// Two-column plan/amount table.
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(130, 9, "Plan", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 9, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(130, 9, o.PlanName, "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 9, r.amount(o.Amount), "1", 1, "R", false, 0, "")

	if o.CouponCode != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 7, "Coupon applied: "+o.CouponCode, "", 1, "L", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(130, 9, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(50, 9, r.amount(o.Amount), "T", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "write pdf")
	}
	return buf.Bytes(), nil
}

func (r *Renderer) amount(v int64) string {
	return fmt.Sprintf("%s %d", r.Currency, v)
}
