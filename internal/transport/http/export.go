package http

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"

	"llm-quiz-service/internal/domain"
)

var resultColumns = []string{"Question", "Your Answer", "Correct Answer", "Explanation", "Result"}

// ExportResultsCSV streams the per-question answer table as a CSV download.
func (h *Handler) ExportResultsCSV(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Results(mux.Vars(r)["sessionID"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="quiz_results.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(resultColumns)
	for _, record := range records {
		_ = cw.Write(resultRow(record))
	}
	cw.Flush()
}

// ExportResultsXLSX serves the same table as a spreadsheet.
func (h *Handler) ExportResultsXLSX(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Results(mux.Vars(r)["sessionID"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headerRow := make([]interface{}, len(resultColumns))
	for i, col := range resultColumns {
		headerRow[i] = col
	}
	_ = f.SetSheetRow(sheet, "A1", &headerRow)

	for i, record := range records {
		row := make([]interface{}, 0, len(resultColumns))
		for _, cell := range resultRow(record) {
			row = append(row, cell)
		}
		_ = f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="quiz_results.xlsx"`)
	_ = f.Write(w)
}

func resultRow(record domain.AnswerRecord) []string {
	return []string{
		record.Question,
		record.Selected,
		record.CorrectAnswer,
		record.Explanation,
		string(record.Result),
	}
}
