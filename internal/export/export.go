// Package export writes reservation lists to spreadsheets.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"classbook/internal/models"
)

const (
	SheetUpcoming = "Upcoming"
	SheetPast     = "Past"
)

var columns = []string{"Classroom", "Start", "End", "Minutes", "Booked by", "Reservation ID"}

// sheetWriter appends rows to named sheets of one workbook.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
	bold  int
}

func newSheetWriter() (*sheetWriter, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	return &sheetWriter{file: f, bold: bold}, nil
}

func (w *sheetWriter) addSheet(name string) error {
	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1
	return nil
}

func (w *sheetWriter) writeRow(values []any) error {
	if w.sheet == "" {
		return errors.New("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return err
	}
	w.row++
	return nil
}

func (w *sheetWriter) writeHeader(cols []string) error {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = c
	}
	if err := w.writeRow(values); err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, w.row-1)
	end, _ := excelize.CoordinatesToCellName(len(cols), w.row-1)
	return w.file.SetCellStyle(w.sheet, start, end, w.bold)
}

// Reservations writes upcoming and past reservations to two sheets, times shown in loc.
func Reservations(out io.Writer, future, past []models.Reservation, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	w, err := newSheetWriter()
	if err != nil {
		return err
	}
	defer w.file.Close()

	for _, part := range []struct {
		name string
		list []models.Reservation
	}{{SheetUpcoming, future}, {SheetPast, past}} {
		if err := w.addSheet(part.name); err != nil {
			return err
		}
		if err := w.writeHeader(columns); err != nil {
			return err
		}
		for _, r := range part.list {
			row := []any{
				r.Classroom.Name,
				r.StartTime.In(loc).Format("2006-01-02 15:04"),
				r.EndTime.In(loc).Format("2006-01-02 15:04"),
				int(r.Duration().Minutes()),
				r.User.Name,
				r.ID,
			}
			if err := w.writeRow(row); err != nil {
				return fmt.Errorf("write %s row: %w", part.name, err)
			}
		}
	}

	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
