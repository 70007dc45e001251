// Package receipt renders the storage receipt handed to both parties
// once a customer confirms a handover.
package receipt

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

// PDFRenderer produces A4 PDF receipts.
type PDFRenderer struct {
	// ShopName is printed in the header.
	ShopName string
}

// NewPDFRenderer returns a renderer printing shop in the header.
func NewPDFRenderer(shop string) *PDFRenderer {
	if shop == "" {
		shop = "Tire storage"
	}
	return &PDFRenderer{ShopName: shop}
}

var (
	labelStyle = props.Text{Style: fontstyle.Bold, Size: 10}
	valueStyle = props.Text{Size: 10}
)

// Render returns the PDF bytes for job.
func (r *PDFRenderer) Render(job model.ReceiptJob) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRows(
		text.NewRow(12, r.ShopName, props.Text{Style: fontstyle.Bold, Size: 16, Align: align.Center}),
		text.NewRow(8, fmt.Sprintf("Storage receipt, cell %d", job.CellLabel), props.Text{Size: 12, Align: align.Center}),
		line.NewRow(6),
	)
	field := func(label, value string) {
		m.AddRow(7, text.NewCol(4, label, labelStyle), text.NewCol(8, value, valueStyle))
	}
	field("Receipt", job.ID)
	field("Confirmed at", job.ConfirmedAt.Format("2006-01-02 15:04 MST"))
	field("Customer", partyLine(job.Customer))
	field("Accepted by", partyLine(job.Employee))
	field("Storage type", string(job.StorageType))
	field("Stored until", job.ScheduledMonth)
	field("Price", job.Price.StringFixed(2))
	if d := strings.TrimSpace(job.Description); d != "" {
		field("Description", d)
	}
	if len(job.Photos) > 0 {
		field("Photos", fmt.Sprintf("%d attached", len(job.Photos)))
	}
	m.AddRows(
		line.NewRow(6),
		text.NewRow(10, "The goods are released only after both parties confirm the pickup.",
			props.Text{Size: 8, Style: fontstyle.Italic, Align: align.Center}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate receipt: %w", err)
	}
	return doc.GetBytes(), nil
}

func partyLine(p model.ReceiptParty) string {
	if p.Phone == "" {
		return p.Name
	}
	return p.Name + ", " + p.Phone
}
