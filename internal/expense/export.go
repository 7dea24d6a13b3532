package expense

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/finwise/backend/internal/auth"
	apperrors "github.com/finwise/backend/internal/errors"
)

const exportSheet = "Expenses"

// Export streams the user's expenses as an XLSX workbook. The same filters
// as List apply, so a month's worth can be exported in one request.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) error {
	user := auth.MustGetUser(r.Context())

	filter, _, err := parseFilter(r)
	if err != nil {
		return err
	}

	expenses, err := h.expenses.ListAll(r.Context(), user.ID, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return apperrors.InternalError("Failed to build export").WithCause(err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Date", "Category", "Merchant", "Amount", "Currency", "Note"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, header)
	}

	for i, e := range expenses {
		row := i + 2
		f.SetCellValue(exportSheet, fmt.Sprintf("A%d", row), e.Date.Format("2006-01-02"))
		f.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), e.Category)
		f.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), e.Merchant)
		f.SetCellValue(exportSheet, fmt.Sprintf("D%d", row), e.Amount)
		f.SetCellValue(exportSheet, fmt.Sprintf("E%d", row), e.Currency)
		f.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), e.Note)
	}

	f.SetColWidth(exportSheet, "A", "A", 12)
	f.SetColWidth(exportSheet, "B", "C", 16)
	f.SetColWidth(exportSheet, "D", "E", 10)
	f.SetColWidth(exportSheet, "F", "F", 30)

	filename := fmt.Sprintf("expenses-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))

	if err := f.Write(w); err != nil {
		// Headers are already out; nothing useful left to send.
		return nil
	}
	return nil
}
