package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/rowforge/rowforge/pkg/job"
)

// XLSX is an Accessor over local .xlsx workbooks. The descriptor's
// SheetID is the workbook path and SheetName the worksheet.
//
// Workbooks stay open and cached between calls; Close flushes every
// dirty workbook back to disk. A single mutex serializes access, which
// is enough because intra-job parallelism does not exist and cross-job
// throughput is bounded by the provider rate limits, not by sheet I/O.
type XLSX struct {
	mu    sync.Mutex
	books map[string]*workbook
}

type workbook struct {
	file  *excelize.File
	dirty bool
	// headers caches column positions per sheet, header name -> 1-based
	// column index.
	headers map[string]map[string]int
}

// NewXLSX creates an accessor with an empty workbook cache.
func NewXLSX() *XLSX {
	return &XLSX{books: make(map[string]*workbook)}
}

func (x *XLSX) ReadRow(ctx context.Context, src job.SourceDescriptor, index int) (Row, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	wb, err := x.open(src.SheetID)
	if err != nil {
		return Row{}, err
	}
	headers, err := wb.sheetHeaders(src.SheetName)
	if err != nil {
		return Row{}, err
	}

	sheetRow := src.StartRow + index
	values := make(map[string]string, len(headers))
	for name, col := range headers {
		cell, err := excelize.CoordinatesToCellName(col, sheetRow)
		if err != nil {
			return Row{}, fmt.Errorf("sheet %s row %d: %w", src.SheetName, sheetRow, err)
		}
		v, err := wb.file.GetCellValue(src.SheetName, cell)
		if err != nil {
			return Row{}, fmt.Errorf("read %s!%s: %w", src.SheetName, cell, err)
		}
		values[name] = v
	}
	return Row{Index: index, Values: values}, nil
}

func (x *XLSX) WriteRow(ctx context.Context, src job.SourceDescriptor, index int, fields EnrichedFields) error {
	if len(fields) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	wb, err := x.open(src.SheetID)
	if err != nil {
		return err
	}
	headers, err := wb.sheetHeaders(src.SheetName)
	if err != nil {
		return err
	}

	sheetRow := src.StartRow + index
	for name, value := range fields {
		col, ok := headers[name]
		if !ok {
			// New enrichment column: append it after the last header.
			col = len(headers) + 1
			headCell, err := excelize.CoordinatesToCellName(col, 1)
			if err != nil {
				return err
			}
			if err := wb.file.SetCellValue(src.SheetName, headCell, name); err != nil {
				return fmt.Errorf("add column %q: %w", name, err)
			}
			headers[name] = col
		}
		cell, err := excelize.CoordinatesToCellName(col, sheetRow)
		if err != nil {
			return err
		}
		if err := wb.file.SetCellValue(src.SheetName, cell, value); err != nil {
			return fmt.Errorf("write %s!%s: %w", src.SheetName, cell, err)
		}
	}
	wb.dirty = true
	return nil
}

// Flush saves every dirty workbook back to disk.
func (x *XLSX) Flush() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for path, wb := range x.books {
		if !wb.dirty {
			continue
		}
		if err := wb.file.Save(); err != nil {
			return fmt.Errorf("save workbook %s: %w", path, err)
		}
		wb.dirty = false
	}
	return nil
}

// Close flushes and closes all cached workbooks.
func (x *XLSX) Close() error {
	if err := x.Flush(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	var firstErr error
	for _, wb := range x.books {
		if err := wb.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	x.books = make(map[string]*workbook)
	return firstErr
}

func (x *XLSX) open(path string) (*workbook, error) {
	if wb, ok := x.books[path]; ok {
		return wb, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	wb := &workbook{file: f, headers: make(map[string]map[string]int)}
	x.books[path] = wb
	return wb, nil
}

// sheetHeaders reads the header row (row 1) once per sheet and caches
// the column layout.
func (wb *workbook) sheetHeaders(sheet string) (map[string]int, error) {
	if h, ok := wb.headers[sheet]; ok {
		return h, nil
	}
	rows, err := wb.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	headers := make(map[string]int)
	if len(rows) > 0 {
		for i, name := range rows[0] {
			if name != "" {
				headers[name] = i + 1
			}
		}
	}
	wb.headers[sheet] = headers
	return headers, nil
}
