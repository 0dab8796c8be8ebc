package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/statemachine"
	"github.com/skip2/go-qrcode"
)

const sheetFontFamily = "sheet"

// OrderSheetOptions configures the printed order sheet.
type OrderSheetOptions struct {
	// PortalURL is the customer portal the QR code points at.
	PortalURL string
	// FontPath is a TrueType font with CJK glyphs. Without it, non-ASCII text is dropped.
	FontPath string
}

// OrderSheetPrinter renders an A4 production sheet for an order.
type OrderSheetPrinter struct {
	opts OrderSheetOptions
}

// NewOrderSheetPrinter creates a printer with the given options.
func NewOrderSheetPrinter(opts OrderSheetOptions) *OrderSheetPrinter {
	if opts.PortalURL == "" {
		opts.PortalURL = "http://localhost:8501"
	}
	return &OrderSheetPrinter{opts: opts}
}

// PortalLink is the customer portal URL for an order number.
func (p *OrderSheetPrinter) PortalLink(orderNumber string) string {
	sep := "?"
	if strings.Contains(p.opts.PortalURL, "?") {
		sep = "&"
	}
	return p.opts.PortalURL + sep + "order_number=" + url.QueryEscape(orderNumber)
}

// Render builds the PDF for an order and its stage records.
func (p *OrderSheetPrinter) Render(order *models.Order, records []models.StageProgress) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)

	unicodeFont := false
	if p.opts.FontPath != "" {
		pdf.AddUTF8Font(sheetFontFamily, "", p.opts.FontPath)
		if pdf.Err() {
			return nil, fmt.Errorf("load sheet font: %w", pdf.Error())
		}
		unicodeFont = true
	}
	text := func(s string) string {
		if unicodeFont {
			return s
		}
		return asciiOnly(s)
	}
	setFont := func(style string, size float64) {
		if unicodeFont {
			pdf.SetFont(sheetFontFamily, "", size)
			return
		}
		pdf.SetFont("Arial", style, size)
	}

	pdf.AddPage()

	setFont("B", 18)
	pdf.CellFormat(120, 10, "Memorial Diamond Order", "", 1, "L", false, 0, "")

	setFont("", 11)
	rows := [][2]string{
		{"Order No.", order.OrderNumber},
		{"Customer", text(order.CustomerName)},
		{"Phone", order.CustomerPhone},
		{"Diamond", text(string(order.DiamondType) + " " + string(order.DiamondSize))},
		{"Status", string(order.Status)},
		{"Progress", fmt.Sprintf("%d%%", order.ProgressPercentage)},
		{"Created", order.CreatedAt.Format("2006-01-02")},
	}
	if order.EstimatedCompletion != nil {
		rows = append(rows, [2]string{"Est. Completion", order.EstimatedCompletion.Format("2006-01-02")})
	}
	for _, row := range rows {
		pdf.CellFormat(35, 7, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(85, 7, row[1], "", 1, "L", false, 0, "")
	}

	qrPng, err := qrcode.Encode(p.PortalLink(order.OrderNumber), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode portal qr: %w", err)
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("portal_qr", imgOptions, bytes.NewReader(qrPng))
	pdf.ImageOptions("portal_qr", 150, 20, 45, 45, false, imgOptions, 0, "")

	pdf.SetY(80)
	setFont("B", 13)
	pdf.CellFormat(0, 9, "Production Stages", "B", 1, "L", false, 0, "")

	setFont("B", 10)
	headers := []struct {
		label string
		width float64
	}{{"#", 10}, {"Stage", 30}, {"Name", 60}, {"Status", 30}, {"Started", 25}, {"Completed", 25}}
	for _, h := range headers {
		pdf.CellFormat(h.width, 8, h.label, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	setFont("", 10)
	for _, entry := range FormatProgressForTimeline(records) {
		started, completed := "", ""
		if entry.StartedAt != nil {
			started = entry.StartedAt.Format("2006-01-02")
		}
		if entry.CompletedAt != nil {
			completed = entry.CompletedAt.Format("2006-01-02")
		}
		pdf.CellFormat(10, 8, fmt.Sprintf("%d", entry.StageOrder), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 8, entry.StageID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 8, text(entry.StageName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, string(entry.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 8, started, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 8, completed, "1", 1, "C", false, 0, "")
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render order sheet: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write order sheet: %w", err)
	}
	return buf.Bytes(), nil
}

func asciiOnly(s string) string {
	out := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	out = strings.TrimSpace(out)
	if out == "" {
		return "-"
	}
	return out
}

// PrintOrderSheet renders the sheet for an order whose print_order action is allowed.
func (s *OrderService) PrintOrderSheet(ctx context.Context, orderID uint, caller Caller) ([]byte, *models.Order, error) {
	order, _, err := s.requireAction(ctx, orderID, caller, statemachine.ActionPrintOrder)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.store.FetchProgress(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := s.printer.Render(order, records)
	if err != nil {
		return nil, nil, err
	}
	return pdf, order, nil
}
