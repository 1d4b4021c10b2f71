package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"studyfeedback/domain/core"
	"studyfeedback/domain/result"
	"studyfeedback/internal"
	"studyfeedback/internal/errors"
	"studyfeedback/internal/feedback/coerce"
)

// DataReader handles reading Excel and CSV exports of trial data
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: logger}
}

// ReadData reads the first sheet (or the CSV body) into structured form
func (r *DataReader) ReadData() (*SheetData, error) {
	r.logger.Debug("reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.ImportFailed(r.filePath, fmt.Errorf("%s file not found", strings.ToUpper(r.fileType)))
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	default:
		return r.readExcelData()
	}
}

func (r *DataReader) readExcelData() (*SheetData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.ImportFailed(r.filePath, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ImportFailed(r.filePath, fmt.Errorf("workbook has no sheets"))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.ImportFailed(r.filePath, err)
	}
	r.logger.Debug("sheet %q read in %.2fms (%d rows)", sheets[0], float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

func (r *DataReader) readCSVData() (*SheetData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.ImportFailed(r.filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.ImportFailed(r.filePath, err)
	}
	return r.processRows(rows)
}

// processRows converts raw string rows into SheetData
func (r *DataReader) processRows(rows [][]string) (*SheetData, error) {
	if len(rows) < 2 {
		return nil, errors.ImportFailed(r.filePath, fmt.Errorf("file must have a header row and at least one data row"))
	}

	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	var dataRows []RawRowData
	for _, row := range rows[1:] {
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) && headers[j] != "" {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Debug("%s file processed (%d columns, %d rows)", strings.ToUpper(r.fileType), len(headers), len(dataRows))
	return &SheetData{Headers: headers, Rows: dataRows}, nil
}

// Import reads the file and groups its rows into one result per participant,
// in order of first appearance
func (r *DataReader) Import(opts ImportOptions) ([]*result.EnrichedResult, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return BuildResults(data, opts), nil
}

// BuildResults turns rows into results. Each result holds one sequence
// component whose records are the participant's rows with coerced cells.
func BuildResults(data *SheetData, opts ImportOptions) []*result.EnrichedResult {
	column := opts.ParticipantColumn
	if column == "" {
		column = DetectParticipantColumn(data.Headers)
	}
	name := opts.ComponentName
	if name == "" {
		name = "trials"
	}

	var order []string
	groups := make(map[string][]result.Record)
	for _, row := range data.Rows {
		key := ""
		if column != "" {
			key = row[column]
		}
		record := make(result.Record, len(row))
		for header, cell := range row {
			if header == column || cell == "" {
				continue
			}
			record[header] = CoerceCell(cell)
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], record)
	}

	results := make([]*result.EnrichedResult, 0, len(order))
	for _, key := range order {
		results = append(results, result.NewEnrichedResult(
			core.StudyID(opts.StudyID),
			core.ParticipantID(key),
			result.ComponentResult{Name: name, ParsedData: result.Sequence(groups[key]...)},
		))
	}
	return results
}

// DetectParticipantColumn returns the first header matching ParticipantColumns
func DetectParticipantColumn(headers []string) string {
	for _, candidate := range ParticipantColumns {
		for _, header := range headers {
			if strings.EqualFold(header, candidate) {
				return header
			}
		}
	}
	return ""
}

// CoerceCell turns a cell into a finite number, a boolean or the trimmed
// string. NaN and infinity cells stay text so results remain JSON encodable.
func CoerceCell(cell string) interface{} {
	cell = strings.TrimSpace(cell)
	if f, ok := coerce.ParseNumber(cell); ok {
		return f
	}
	switch strings.ToLower(cell) {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}
