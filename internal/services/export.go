package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	gradebookSheet = "Grades"
	summarySheet   = "Summary"
)

// ExportService renders a project's grade book as an XLSX workbook.
type ExportService struct {
	stats *StatsService
	loc   *time.Location
}

func NewExportService(stats *StatsService, loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{stats: stats, loc: loc}
}

// Gradebook returns the workbook bytes and a download file name. Owning
// professor only.
func (s *ExportService) Gradebook(professorID, projectID uint) ([]byte, string, error) {
	summary, err := s.stats.ProjectStats(professorID, projectID)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.stats.GradebookRows(projectID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", gradebookSheet); err != nil {
		return nil, "", err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, "", err
	}

	headers := []interface{}{"Team", "Deliverable", "Due Date", "Released", "Juror", "Juror Email", "Grade", "Feedback", "Submitted At"}
	if err := writeRow(f, gradebookSheet, 1, headers); err != nil {
		return nil, "", err
	}
	_ = f.SetCellStyle(gradebookSheet, "A1", "I1", headerStyle)

	for i, r := range rows {
		released := "no"
		if r.Released {
			released = "yes"
		}
		if err := writeRow(f, gradebookSheet, i+2, []interface{}{
			r.TeamName,
			r.DeliverableTitle,
			r.DueDate.In(s.loc).Format("2006-01-02 15:04"),
			released,
			r.JurorName,
			r.JurorEmail,
			r.Grade,
			r.Feedback,
			r.SubmittedAt.In(s.loc).Format("2006-01-02 15:04"),
		}); err != nil {
			return nil, "", err
		}
	}
	_ = f.SetColWidth(gradebookSheet, "A", "F", 22)
	_ = f.SetColWidth(gradebookSheet, "H", "H", 50)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, "", err
	}
	if err := writeRow(f, summarySheet, 1, []interface{}{"Team", "Members", "Deliverables", "Jury Assigned", "Graded", "Released", "Average Grade"}); err != nil {
		return nil, "", err
	}
	_ = f.SetCellStyle(summarySheet, "A1", "G1", headerStyle)
	for i, t := range summary.Teams {
		avg := ""
		if t.AverageGrade != nil {
			avg = *t.AverageGrade
		}
		if err := writeRow(f, summarySheet, i+2, []interface{}{
			t.TeamName, t.Members, t.Deliverables, t.JuryAssigned, t.Graded, t.Released, avg,
		}); err != nil {
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return bytes.Clone(buf.Bytes()), fmt.Sprintf("gradebook-project-%d.xlsx", projectID), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
