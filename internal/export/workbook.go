package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"meeting-insights-go/internal/domain"
)

// Workbook renders a summary report into an xlsx workbook for download.
// It reads committed results only and mutates no pipeline state.
func Workbook(m domain.Meeting, report domain.SummaryReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const overview = "Overview"
	f.SetSheetName(f.GetSheetName(0), overview)
	setRows(f, overview, [][]interface{}{
		{"Meeting", m.Title},
		{"Date", m.ScheduledDate},
		{"Time", m.ScheduledTime},
		{"Participants", m.ParticipantCount},
		{},
		{"Overview", report.Overview},
	})

	if _, err := f.NewSheet("Key Points"); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	rows := [][]interface{}{{"#", "Key Point"}}
	for i, p := range report.KeyPoints {
		rows = append(rows, []interface{}{i + 1, p})
	}
	setRows(f, "Key Points", rows)

	if _, err := f.NewSheet("Action Items"); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	rows = [][]interface{}{{"Task", "Assignee", "Deadline"}}
	for _, item := range report.ActionItems {
		rows = append(rows, []interface{}{item.Task, item.Assignee, item.Deadline})
	}
	setRows(f, "Action Items", rows)

	if _, err := f.NewSheet("Important Dates"); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	rows = [][]interface{}{{"Event", "Date"}}
	for _, d := range report.ImportantDates {
		rows = append(rows, []interface{}{d.Event, d.Date})
	}
	setRows(f, "Important Dates", rows)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) {
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = f.SetSheetRow(sheet, cell, &row)
	}
}
