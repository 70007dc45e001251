package receipt

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

func TestRenderProducesPDF(t *testing.T) {
	r := NewPDFRenderer("")
	out, err := r.Render(model.ReceiptJob{
		ID:             "1",
		CellLabel:      7,
		Customer:       model.ReceiptParty{UserID: "c", Name: "Ann", Phone: "+100"},
		Employee:       model.ReceiptParty{UserID: "e", Name: "Bob"},
		StorageType:    model.StorageTires,
		Price:          decimal.NewFromInt(3000),
		Description:    "winter set",
		ScheduledMonth: "2025-12",
		Photos:         []string{"a"},
		ConfirmedAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
