package excel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"studyfeedback/domain/core"
	"studyfeedback/internal/errors"
	"studyfeedback/internal/feedback/render"
)

func TestCoerceCell(t *testing.T) {
	assert.Equal(t, 350.0, CoerceCell("350"))
	assert.Equal(t, -1.5, CoerceCell(" -1.5 "))
	assert.Equal(t, true, CoerceCell("TRUE"))
	assert.Equal(t, false, CoerceCell("false"))
	assert.Equal(t, "blue", CoerceCell("blue"))
	assert.Equal(t, "NaN", CoerceCell("NaN"))
	assert.Equal(t, "inf", CoerceCell(" inf "))
	assert.Equal(t, "-Infinity", CoerceCell("-Infinity"))
}

func TestBuildResults_NonFiniteCellsStayEncodable(t *testing.T) {
	data := &SheetData{
		Headers: []string{"subject", "rt"},
		Rows: []RawRowData{
			{"subject": "s1", "rt": "NaN"},
			{"subject": "s1", "rt": "inf"},
			{"subject": "s1", "rt": "250"},
		},
	}

	results := BuildResults(data, ImportOptions{StudyID: "stroop"})
	require.Len(t, results, 1)

	_, err := json.Marshal(results)
	require.NoError(t, err)

	md := render.Render("{{ var:rt }} | {{ stat:rt.avg }}", render.Context{Result: results[0]})
	assert.Equal(t, "NaN, inf, 250 | 250", md)
}

func TestDetectParticipantColumn(t *testing.T) {
	assert.Equal(t, "Subject", DetectParticipantColumn([]string{"rt", "Subject"}))
	assert.Equal(t, "participant_id", DetectParticipantColumn([]string{"subject", "participant_id"}))
	assert.Equal(t, "", DetectParticipantColumn([]string{"rt", "correct"}))
}

func TestImport_CSVGroupsParticipants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trials.csv")
	body := "participant_id,rt,correct,stimulus\n" +
		"p1,350,true,blue\n" +
		"p2,500,false,red\n" +
		"p1,420,false,\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	results, err := NewDataReader(path, nil).Import(ImportOptions{StudyID: "stroop"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	p1 := results[0]
	assert.Equal(t, core.ParticipantID("p1"), p1.ParticipantID)
	assert.Equal(t, core.StudyID("stroop"), p1.StudyID)
	records := p1.ComponentResults[0].ParsedData.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 350.0, records[0]["rt"])
	assert.Equal(t, true, records[0]["correct"])
	assert.NotContains(t, records[1], "stimulus", "empty cells are omitted")
	assert.NotContains(t, records[0], "participant_id")

	md := render.Render("{{ stat:rt.avg }} / {{ var:stimulus }}", render.Context{Result: p1})
	assert.Equal(t, "385 / blue", md)
}

func TestImport_XLSXFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trials.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"rt", "correct"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{300, true}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{500, false}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	results, err := NewDataReader(path, nil).Import(ImportOptions{ComponentName: "stroop"})
	require.NoError(t, err)
	require.Len(t, results, 1, "no participant column means one result")

	c := results[0].ComponentResults[0]
	assert.Equal(t, "stroop", c.Name)
	require.Len(t, c.ParsedData.Records(), 2)
	assert.Equal(t, 500.0, c.ParsedData.Records()[1]["rt"])
}

func TestReadData_Errors(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "missing.csv"), nil).ReadData()
	require.Error(t, err)
	assert.Equal(t, errors.CodeImportFailed, errors.GetCode(err))

	headerOnly := filepath.Join(t.TempDir(), "header.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte("rt,correct\n"), 0o600))
	_, err = NewDataReader(headerOnly, nil).ReadData()
	assert.Error(t, err)
}
