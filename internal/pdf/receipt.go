// Package pdf renders the payment receipt attached to confirmation emails
// and served to staff.
package pdf

import (
	"fmt"
	"time"

	"raccordement_backend/platform/money"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	qrcode "github.com/skip2/go-qrcode"
)

// ── Colour palette ──────────────────────────────────────────────────────

var (
	colorPrimary   = &props.Color{Red: 17, Green: 24, Blue: 39}
	colorSecondary = &props.Color{Red: 107, Green: 114, Blue: 128}
	colorAccent    = &props.Color{Red: 37, Green: 99, Blue: 235}
	colorTableHead = &props.Color{Red: 241, Green: 245, Blue: 249}
	colorGreen     = &props.Color{Red: 22, Green: 163, Blue: 74}
	colorGreenBg   = &props.Color{Red: 220, Green: 252, Blue: 231}
	colorRed       = &props.Color{Red: 220, Green: 38, Blue: 38}
	colorRedBg     = &props.Color{Red: 254, Green: 226, Blue: 226}
	colorBorder    = &props.Color{Red: 226, Green: 232, Blue: 240}
)

// ── Data struct ─────────────────────────────────────────────────────────

// ReceiptData holds everything printed on a payment receipt.
type ReceiptData struct {
	CompanyName string
	Reference   string

	CustomerName  string
	CustomerEmail string
	CompanyClient string
	AddressLine   string
	PostalCity    string

	ConnectionLabel string
	AmountCents     int64
	Currency        string
	Status          string
	PaidAt          *time.Time
	RefundedAt      *time.Time
	ProcessorID     string
	IssuedAt        time.Time

	// TrackingURL is encoded as a QR code when set.
	TrackingURL string
}

// GenerateReceipt renders a one page A4 receipt.
func GenerateReceipt(data ReceiptData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(12).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	if err := m.RegisterFooter(buildFooter(data)); err != nil {
		return nil, fmt.Errorf("register footer: %w", err)
	}

	m.AddRows(buildHeader(data))
	m.AddRows(row.New(1).WithStyle(&props.Cell{BorderType: border.Bottom, BorderColor: colorBorder}))
	m.AddRows(row.New(6))

	m.AddRows(buildParties(data)...)
	m.AddRows(row.New(6))

	m.AddRows(buildStatusBanner(data))
	m.AddRows(row.New(4))

	m.AddRows(buildLines(data)...)

	if data.TrackingURL != "" {
		qr, err := qrcode.Encode(data.TrackingURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode tracking qr: %w", err)
		}
		m.AddRows(row.New(8))
		m.AddRows(buildTracking(qr))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Header ──────────────────────────────────────────────────────────────

func buildHeader(data ReceiptData) core.Row {
	return row.New(20).Add(
		col.New(6).Add(text.New(data.CompanyName, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Color: colorPrimary,
			Top:   4,
		})),
		col.New(6).Add(
			text.New("REÇU DE PAIEMENT", props.Text{
				Size:  20,
				Style: fontstyle.Bold,
				Align: align.Right,
				Color: colorAccent,
			}),
			text.New(data.Reference, props.Text{
				Size:  11,
				Align: align.Right,
				Color: colorSecondary,
				Top:   11,
			}),
		),
	)
}

// ── Customer / receipt details ──────────────────────────────────────────

func buildParties(data ReceiptData) []core.Row {
	label := props.Text{Size: 7, Style: fontstyle.Bold, Color: colorAccent}
	value := props.Text{Size: 8, Color: colorSecondary}

	rows := []core.Row{
		row.New(5).Add(
			col.New(7).Add(text.New("CLIENT", label)),
			col.New(5).Add(text.New("DÉTAILS", props.Text{Size: 7, Style: fontstyle.Bold, Color: colorAccent, Align: align.Right})),
		),
		row.New(5).Add(
			col.New(7).Add(text.New(data.CustomerName, props.Text{Size: 9, Style: fontstyle.Bold, Color: colorPrimary})),
			col.New(5).Add(text.New("Émis le "+data.IssuedAt.Format("02/01/2006"), props.Text{Size: 8, Color: colorSecondary, Align: align.Right})),
		),
	}
	if data.CompanyClient != "" {
		rows = append(rows, row.New(5).Add(col.New(12).Add(text.New(data.CompanyClient, value))))
	}
	rows = append(rows,
		row.New(5).Add(
			col.New(7).Add(text.New(data.AddressLine, value)),
			col.New(5).Add(text.New("Transaction : "+data.ProcessorID, props.Text{Size: 7, Color: colorSecondary, Align: align.Right})),
		),
		row.New(5).Add(col.New(12).Add(text.New(data.PostalCity, value))),
		row.New(5).Add(col.New(12).Add(text.New(data.CustomerEmail, value))),
	)
	return rows
}

// ── Status banner ───────────────────────────────────────────────────────

func buildStatusBanner(data ReceiptData) core.Row {
	label, fg, bg := "Paiement en attente", colorSecondary, colorTableHead
	switch data.Status {
	case "paid":
		label, fg, bg = "Paiement reçu", colorGreen, colorGreenBg
		if data.PaidAt != nil {
			label += " le " + data.PaidAt.Format("02/01/2006 à 15:04")
		}
	case "refunded":
		label, fg, bg = "Paiement remboursé", colorRed, colorRedBg
		if data.RefundedAt != nil {
			label += " le " + data.RefundedAt.Format("02/01/2006")
		}
	case "failed":
		label, fg, bg = "Paiement refusé", colorRed, colorRedBg
	case "canceled":
		label, fg, bg = "Paiement annulé", colorRed, colorRedBg
	}
	return row.New(8).Add(
		col.New(12).Add(text.New(label, props.Text{Size: 9, Style: fontstyle.Bold, Color: fg, Top: 2})),
	).WithStyle(&props.Cell{BackgroundColor: bg})
}

// ── Lines ───────────────────────────────────────────────────────────────

func buildLines(data ReceiptData) []core.Row {
	head := props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Top: 1.5}
	headRight := props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right, Top: 1.5}

	return []core.Row{
		row.New(7).Add(
			col.New(9).Add(text.New("Prestation", head)),
			col.New(3).Add(text.New("Montant TTC", headRight)),
		).WithStyle(&props.Cell{BackgroundColor: colorTableHead, BorderType: border.Bottom, BorderColor: colorBorder}),
		row.New(7).Add(
			col.New(9).Add(text.New("Accompagnement raccordement : "+data.ConnectionLabel, props.Text{Size: 8, Color: colorPrimary, Top: 1})),
			col.New(3).Add(text.New(money.Euros(data.AmountCents), props.Text{Size: 8, Color: colorPrimary, Align: align.Right, Top: 1})),
		),
		row.New(2),
		row.New(10).Add(
			col.New(9).Add(text.New("TOTAL", props.Text{Size: 12, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right, Top: 2})),
			col.New(3).Add(text.New(money.Euros(data.AmountCents), props.Text{Size: 12, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right, Top: 2})),
		).WithStyle(&props.Cell{BackgroundColor: colorTableHead, BorderType: border.Full, BorderColor: colorBorder}),
	}
}

// ── Tracking ────────────────────────────────────────────────────────────

func buildTracking(qr []byte) core.Row {
	return row.New(30).Add(
		col.New(3).Add(image.NewFromBytes(qr, extension.Png, props.Rect{Percent: 95})),
		col.New(9).Add(text.New("Scannez ce code pour suivre l'avancement de votre demande.", props.Text{
			Size:  8,
			Color: colorSecondary,
			Top:   12,
		})),
	)
}

// ── Footer ──────────────────────────────────────────────────────────────

func buildFooter(data ReceiptData) core.Row {
	return row.New(10).Add(
		col.New(12).Add(text.New(data.CompanyName+"  ·  Reçu généré automatiquement, sans signature.", props.Text{
			Size:  6.5,
			Color: colorSecondary,
			Align: align.Center,
			Top:   4,
		})),
	).WithStyle(&props.Cell{BorderType: border.Top, BorderColor: colorBorder})
}
