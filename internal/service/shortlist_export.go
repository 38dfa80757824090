package service

import (
	"bytes"
	"context"
	"fmt"
	"hire_assessment_backend/internal/util"

	"github.com/xuri/excelize/v2"
)

const shortlistSheet = "Shortlist"

var shortlistHeaders = []string{"Candidate", "Resume ID", "Job", "Stages", "Completed", "Average Score", "Status"}

// WriteShortlistXLSX 写出候选人汇总表
func WriteShortlistXLSX(entries []ShortlistEntry, threshold float64) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", shortlistSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	for i, h := range shortlistHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(shortlistSheet, cell, h)
	}
	f.SetCellStyle(shortlistSheet, "A1", "G1", headerStyle)

	for i, e := range entries {
		row := i + 2
		avg := ""
		if e.AverageScore != nil {
			avg = fmt.Sprintf("%.2f", *e.AverageScore)
		}
		values := []interface{}{e.CandidateName, e.ResumeID, e.JobTitle, e.TotalStages, e.CompletedStages, avg, string(e.Status)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(shortlistSheet, cell, v)
		}
	}

	noteRow := len(entries) + 3
	f.SetCellValue(shortlistSheet, fmt.Sprintf("A%d", noteRow), "Threshold:")
	f.SetCellValue(shortlistSheet, fmt.Sprintf("B%d", noteRow), threshold)

	f.SetColWidth(shortlistSheet, "A", "A", 28)
	f.SetColWidth(shortlistSheet, "B", "B", 38)
	f.SetColWidth(shortlistSheet, "C", "C", 30)
	f.SetColWidth(shortlistSheet, "D", "G", 16)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

func (s *StatsService) ExportShortlist(ctx context.Context, claims *util.Claims, f StatsFilter) (*bytes.Buffer, error) {
	entries, err := s.Shortlist(ctx, claims, f)
	if err != nil {
		return nil, err
	}
	buf, err := WriteShortlistXLSX(entries, s.Settings.Get().ShortlistThreshold)
	if err != nil {
		return nil, util.NewInternalError("write shortlist", err)
	}
	return buf, nil
}
