// Package report renders the printable artifacts: the verified donation
// ledger as PDF and pickup QR codes.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"coffeehouse/internal/models"
)

const qrSize = 256

// PickupQR encodes the order status link.
func PickupQR(publicURL, orderID string) ([]byte, error) {
	png, err := qrcode.Encode(OrderURL(publicURL, orderID), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

func OrderURL(publicURL, orderID string) string {
	for len(publicURL) > 0 && publicURL[len(publicURL)-1] == '/' {
		publicURL = publicURL[:len(publicURL)-1]
	}
	return publicURL + "/order/" + orderID
}

// DonationLedger writes the ledger rows, newest first as given, followed by
// the total.
func DonationLedger(w io.Writer, donations []*models.VerifiedDonation, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Verified donations", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "FX7 Coffee House - Verified Donations")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, "Generated "+generatedAt.Format("2006-01-02 15:04 MST"))
	pdf.Ln(10)

	widths := []float64{45, 60, 50, 30}
	pdf.SetFont("Arial", "B", 11)
	for i, h := range []string{"Verified at", "Customer", "Order", "Amount"} {
		align := "L"
		if i == 3 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, h, "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	total := decimal.Zero
	for _, d := range donations {
		total = total.Add(d.Amount)
		name := d.CustomerName
		if d.Archived {
			name += " (archived)"
		}
		pdf.CellFormat(widths[0], 7, d.VerifiedAt.Format("2006-01-02 15:04"), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, shortID(d.OrderID), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 7, "$"+d.Amount.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	if len(donations) == 0 {
		pdf.CellFormat(0, 7, "No verified donations.", "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 9, fmt.Sprintf("Total (%d)", len(donations)), "T", 0, "L", false, 0, "")
	pdf.CellFormat(widths[3], 9, "$"+total.StringFixed(2), "T", 1, "R", false, 0, "")

	return pdf.Output(w)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
