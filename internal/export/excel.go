package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"voyago/internal/domain"
	"voyago/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	markConfirmed = "✅"
	markPending   = "⏳"
	markCancelled = "❌"
)

// Exporter renders occupancy reports as Excel workbooks: one row per
// resource, one column per date, bookings listed inside the cells.
type Exporter struct {
	bookings domain.BookingStore
	catalog  domain.ResourceCatalog
	path     string
	logger   *zerolog.Logger
}

func NewExporter(bookings domain.BookingStore, catalog domain.ResourceCatalog, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{bookings: bookings, catalog: catalog, path: path, logger: logger}
}

// OccupancyReport создает Excel файл с данными о бронированиях за период.
func (e *Exporter) OccupancyReport(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if endDate.Before(startDate) {
		return "", fmt.Errorf("end date %s is before start date %s",
			endDate.Format(models.DateFormat), startDate.Format(models.DateFormat))
	}
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	daily, err := e.bookings.GetDailyBookings(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}
	resources := e.catalog.GetResources()

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Занятость"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	dateCols := e.writeDateHeaders(f, sheetName, startDate, endDate)
	e.writeResourceHeaders(f, sheetName, resources)
	e.writeBookingCells(f, sheetName, daily, resources, dateCols)

	_ = f.SetColWidth(sheetName, "A", "A", 28)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 22)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("occupancy_%s_to_%s.xlsx",
		startDate.Format(models.DateFormat), endDate.Format(models.DateFormat))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, sheetName string, startDate, endDate time.Time) map[string]int {
	col := 2
	current := startDate
	dateCols := make(map[string]int)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for !current.After(endDate) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, current.Format("02.01"))
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		dateCols[current.Format(models.DateFormat)] = col

		col++
		current = current.AddDate(0, 0, 1)
	}
	return dateCols
}

func (e *Exporter) writeResourceHeaders(f *excelize.File, sheetName string, resources []models.Resource) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	row := 3
	for _, res := range resources {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s (%d)", res.Name, res.TotalCapacity))
		_ = f.SetCellStyle(sheetName, cell, cell, style)
		row++
	}
}

func (e *Exporter) writeBookingCells(
	f *excelize.File, sheetName string,
	daily map[string][]*models.Booking,
	resources []models.Resource,
	dateCols map[string]int,
) {
	for dateKey, bookings := range daily {
		col, ok := dateCols[dateKey]
		if !ok {
			continue
		}

		byResource := make(map[int64][]*models.Booking)
		for _, b := range bookings {
			byResource[b.ResourceID] = append(byResource[b.ResourceID], b)
		}

		row := 3
		for _, res := range resources {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			cellBookings := byResource[res.ID]

			var taken int64
			var cellValue string
			for _, b := range cellBookings {
				if b.IsActive() {
					taken += b.Quantity
				}
				cellValue += fmt.Sprintf("%s %s x%d (%.2f)\n",
					statusMark(b.Status), b.RequesterName, b.Quantity, b.FinalAmount)
				if b.Comment != "" {
					cellValue += fmt.Sprintf("   %s\n", b.Comment)
				}
			}
			if len(cellBookings) > 0 {
				cellValue += fmt.Sprintf("\nЗанято: %d/%d", taken, res.TotalCapacity)
			} else {
				cellValue = fmt.Sprintf("Свободно: %d/%d", res.TotalCapacity, res.TotalCapacity)
			}
			_ = f.SetCellValue(sheetName, cell, cellValue)

			if styleID, err := e.cellStyle(f, cellBookings, taken, res.TotalCapacity); err == nil {
				_ = f.SetCellStyle(sheetName, cell, cell, styleID)
			}
			row++
		}
	}
}

func statusMark(status string) string {
	switch status {
	case models.StatusConfirmed, models.StatusCompleted:
		return markConfirmed
	case models.StatusPending:
		return markPending
	case models.StatusCancelled, models.StatusRejected:
		return markCancelled
	default:
		return "?"
	}
}

// cellStyle возвращает стиль ячейки в зависимости от загрузки ресурса.
func (e *Exporter) cellStyle(f *excelize.File, cellBookings []*models.Booking, taken, capacity int64) (int, error) {
	wrap := &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true}

	var active int
	hasPending := false
	for _, b := range cellBookings {
		if !b.IsActive() {
			continue
		}
		active++
		if b.Status == models.StatusPending {
			hasPending = true
		}
	}

	fill := "#FFFFFF"
	switch {
	case active == 0:
	case taken >= capacity:
		fill = "#FFC7CE" // полностью занято
	case hasPending:
		fill = "#FFEB9C" // есть неподтвержденные
	default:
		fill = "#C6EFCE"
	}

	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		Alignment: wrap,
	})
}
