package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"meeting-insights-go/internal/domain"
)

func TestWorkbookRendersReport(t *testing.T) {
	m := domain.Meeting{ID: "m-1", Title: "Q4 Planning", ScheduledDate: "2026-03-15", ParticipantCount: 8}
	report := domain.SummaryReport{
		Overview:  "Quarterly planning session.",
		KeyPoints: []string{"budget approved", "launch moved", "roles opened"},
		ActionItems: []domain.ActionItem{
			{Task: "Finalize strategy", Assignee: "Sarah", Deadline: "March 25"},
			{Task: "Post job descriptions", Assignee: "HR", Deadline: "March 20"},
		},
		ImportantDates: []domain.ImportantDate{{Event: "Launch", Date: "November 15"}},
	}

	data, err := Workbook(m, report)
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{"Overview", "Key Points", "Action Items", "Important Dates"} {
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			t.Fatalf("missing sheet %q", sheet)
		}
	}

	rows, err := f.GetRows("Key Points")
	if err != nil {
		t.Fatalf("read key points: %v", err)
	}
	// Header plus three points, in discussion order.
	if len(rows) != 4 || rows[1][1] != "budget approved" || rows[3][1] != "roles opened" {
		t.Fatalf("key point rows = %v", rows)
	}

	rows, err = f.GetRows("Action Items")
	if err != nil {
		t.Fatalf("read action items: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "Finalize strategy" || rows[1][2] != "March 25" {
		t.Fatalf("action item rows = %v", rows)
	}
}
