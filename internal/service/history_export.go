package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

const historySheet = "History"

var historyHeaders = []any{
	"Ticket", "Created", "Updated", "Assignee", "Update", "Status", "Priority", "Photos",
}

// ExportHistory renders the rows GetHistory returns for query as an XLSX
// workbook.
func (s *HistoryService) ExportHistory(ctx context.Context, query HistoryQuery) ([]byte, error) {
	rows, err := s.GetHistory(ctx, query)
	if err != nil {
		return nil, err
	}
	return RenderHistoryWorkbook(rows, s.assigneeNames(ctx))
}

// RenderHistoryWorkbook writes one sheet row per history row. names maps
// assignee ids to display names; unknown ids are shown as-is.
func RenderHistoryWorkbook(rows []HistoryRow, names map[string]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(historySheet, "A1", &historyHeaders); err != nil {
		return nil, err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(historySheet, "A1", "H1", style); err != nil {
		return nil, err
	}

	nameOf := func(id *string) string {
		if id == nil {
			return "Unassigned"
		}
		if name, ok := names[*id]; ok {
			return name
		}
		return *id
	}

	for i, row := range rows {
		urls := make([]string, 0, len(row.Photos))
		for _, photo := range row.Photos {
			if photo.URL != "" {
				urls = append(urls, photo.URL)
			}
		}
		values := []any{
			row.TicketName,
			formatTimestamp(row.TicketCreatedAt),
			formatTimestamp(row.UpdatedAt),
			nameOf(row.Assignee),
			UpdateText(row, nameOf),
			statusLabel(row.Status),
			priorityLabel(row.Priority),
			strings.Join(urls, "\n"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(historySheet, cell, &values); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(historySheet, "A", "A", 30)
	_ = f.SetColWidth(historySheet, "B", "D", 20)
	_ = f.SetColWidth(historySheet, "E", "E", 50)
	_ = f.SetColWidth(historySheet, "F", "G", 14)
	_ = f.SetColWidth(historySheet, "H", "H", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// UpdateText is the human readable summary of a row: the note followed by
// one line per tracked change.
func UpdateText(row HistoryRow, nameOf func(*string) string) string {
	lines := []string{}
	if note := strings.TrimSpace(row.Note); note != "" {
		lines = append(lines, note)
	}
	for _, change := range row.Changes {
		switch change.Field {
		case domain.ChangeFieldStatus:
			lines = append(lines, "Status changed to: "+statusLabel(codeOf[domain.TicketStatus](change.To)))
		case domain.ChangeFieldPriority:
			lines = append(lines, "Priority changed to: "+priorityLabel(codeOf[domain.TicketPriority](change.To)))
		case domain.ChangeFieldAssignee:
			var id *string
			if s, ok := change.To.(string); ok {
				id = &s
			}
			lines = append(lines, "Assignee changed to: "+nameOf(id))
		}
	}
	return strings.Join(lines, "\n")
}

func codeOf[T ~int](v any) T {
	switch n := v.(type) {
	case int:
		return T(n)
	case float64:
		return T(int(n))
	}
	return 0
}

func statusLabel(s domain.TicketStatus) string {
	switch s {
	case domain.TicketStatusOpen:
		return "Open"
	case domain.TicketStatusInProgress:
		return "In Progress"
	case domain.TicketStatusClosed:
		return "Closed"
	}
	return "Unknown"
}

func priorityLabel(p domain.TicketPriority) string {
	switch p {
	case domain.TicketPriorityHigh:
		return "High"
	case domain.TicketPriorityMedium:
		return "Medium"
	case domain.TicketPriorityLow:
		return "Low"
	}
	return "Unknown"
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
