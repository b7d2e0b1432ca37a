package infra

// pdf.go — Loading manifest generation using go-pdf/fpdf.
// Generates an A4 manifest per committed plan with:
//   - Departure date header
//   - One section per loaded unit (vehicle key, driver, capacity usage)
//   - Item table per unit (order, customer, suburb, route, weight)
//   - Unit weight subtotal
//
// The output file is saved to storagePath/manifest_{planID}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"fleetdispatch/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// GenerateManifestPDF renders the loading manifest for a committed plan.
// storagePath is the directory where the PDF will be written (created if needed).
// Returns the absolute path to the generated file.
func GenerateManifestPDF(plan *model.Plan, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("manifest_%s.pdf", plan.ID)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24 // total margins = 24mm

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(contentW, 8, "Loading Manifest", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Departure: "+plan.DepartureDate.Format("Mon 02 Jan 2006"), "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 5, "Plan "+plan.ID.String(), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	col1 := contentW * 0.16 // order no
	col2 := contentW * 0.30 // customer
	col3 := contentW * 0.22 // suburb
	col4 := contentW * 0.20 // route
	col5 := contentW * 0.12 // weight

	for _, unit := range plan.Units {
		// ── Unit section header ───────────────────────────────────────────────
		pdf.SetFont("Helvetica", "B", 10)
		title := unit.VehicleKey
		if unit.Vehicle != nil && unit.Vehicle.DriverName != nil {
			title += "  /  " + *unit.Vehicle.DriverName
		}
		pdf.CellFormat(contentW, 6, title, "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 8)
		usage := fmt.Sprintf("Loaded %s of %s kg", unit.UsedKg.StringFixed(1), unit.CapacityKg.StringFixed(1))
		if unit.RouteFamily != "" {
			usage += "  /  " + unit.RouteFamily
		}
		pdf.CellFormat(contentW, 4, usage, "", 1, "L", false, 0, "")
		pdf.Ln(1)

		// ── Item table header ─────────────────────────────────────────────────
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(col1, 5, "Order", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, "Customer", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, "Suburb", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col4, 5, "Route", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col5, 5, "Kg", "B", 1, "R", false, 0, "")

		// ── Item rows ─────────────────────────────────────────────────────────
		pdf.SetFont("Helvetica", "", 8)
		subtotal := decimal.Zero
		for _, asg := range unit.Assignments {
			orderNo, customer, suburb, route := "", "", "", ""
			if asg.Item != nil {
				orderNo = asg.Item.OrderNo
				customer = truncate(asg.Item.CustomerName, 30)
				suburb = truncate(asg.Item.Suburb, 22)
				route = truncate(asg.Item.RouteName, 20)
			}
			pdf.CellFormat(col1, 5, orderNo, "", 0, "L", false, 0, "")
			pdf.CellFormat(col2, 5, customer, "", 0, "L", false, 0, "")
			pdf.CellFormat(col3, 5, suburb, "", 0, "L", false, 0, "")
			pdf.CellFormat(col4, 5, route, "", 0, "L", false, 0, "")
			pdf.CellFormat(col5, 5, asg.WeightKg.StringFixed(1), "", 1, "R", false, 0, "")
			subtotal = subtotal.Add(asg.WeightKg)
		}

		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(col1+col2+col3+col4, 5, "Unit total:", "T", 0, "L", false, 0, "")
		pdf.CellFormat(col5, 5, subtotal.StringFixed(1), "T", 1, "R", false, 0, "")
		pdf.Ln(4)
	}

	// ── Remainder summary ─────────────────────────────────────────────────────
	if len(plan.Remainders) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(contentW, 6, fmt.Sprintf("Not loaded (%d)", len(plan.Remainders)), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		for _, rem := range plan.Remainders {
			line := rem.Reason
			if rem.Item != nil {
				line = rem.Item.OrderNo + "  " + truncate(rem.Item.CustomerName, 34) + "  (" + rem.Reason + ")"
			}
			pdf.CellFormat(contentW, 4, line, "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write manifest: %w", err)
	}
	return filePath, nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-1] + "…"
	}
	return s
}
