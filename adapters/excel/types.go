package excel

// RawRowData represents a row of raw sheet data as string key-value pairs
type RawRowData map[string]string

// SheetData represents the complete tabular dataset
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// ImportOptions controls how rows become results
type ImportOptions struct {
	// StudyID is stamped on every imported result.
	StudyID string
	// ParticipantColumn groups rows by participant. When empty a column named
	// like one of ParticipantColumns is used; without one, all rows form a
	// single result.
	ParticipantColumn string
	// ComponentName names the sequence component of each result.
	ComponentName string
}

// ParticipantColumns are the header names recognized as participant keys
var ParticipantColumns = []string{
	"participant_id",
	"participant",
	"subject_id",
	"subject",
	"worker_id",
}
