package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CredentialSlip is one account's login details printed on a cut-out card.
type CredentialSlip struct {
	FullName   string
	Role       string
	Identifier string
	Email      string
	Password   string
	Section    string
}

// CredentialSlipRenderer lays slips out three per A4 page with dashed cut lines.
type CredentialSlipRenderer struct {
	Institution string
	LoginURL    string
}

// Render produces the slip document.
func (r CredentialSlipRenderer) Render(slips []CredentialSlip, issuedAt time.Time) ([]byte, error) {
	if len(slips) == 0 {
		return nil, fmt.Errorf("no credentials to render")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	const perPage = 3
	const slipHeight = 85.0

	for i, slip := range slips {
		if i%perPage == 0 {
			pdf.AddPage()
		}
		top := 15 + float64(i%perPage)*slipHeight

		pdf.SetFont("Arial", "B", 13)
		pdf.SetXY(15, top)
		pdf.CellFormat(180, 8, tr(r.Institution), "", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.SetX(15)
		pdf.CellFormat(180, 5, "Account credentials - issued "+issuedAt.Format("02 Jan 2006"), "", 1, "C", false, 0, "")
		pdf.Ln(3)

		rows := [][2]string{
			{"Name", slip.FullName},
			{"Role", slip.Role},
			{"ID", slip.Identifier},
			{"Email", slip.Email},
			{"Password", slip.Password},
		}
		if slip.Section != "" {
			rows = append(rows, [2]string{"Section", slip.Section})
		}
		for _, row := range rows {
			pdf.SetX(30)
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(35, 7, row[0], "1", 0, "", false, 0, "")
			pdf.SetFont("Courier", "", 10)
			pdf.CellFormat(115, 7, tr(row[1]), "1", 1, "", false, 0, "")
		}

		if r.LoginURL != "" {
			pdf.SetFont("Arial", "I", 8)
			pdf.SetX(30)
			pdf.CellFormat(150, 6, "Sign in at "+r.LoginURL+" and change your password.", "", 1, "", false, 0, "")
		}

		pdf.SetDashPattern([]float64{2, 2}, 0)
		pdf.Line(10, top+slipHeight-5, 200, top+slipHeight-5)
		pdf.SetDashPattern([]float64{}, 0)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render credential slips: %w", err)
	}
	return buf.Bytes(), nil
}
