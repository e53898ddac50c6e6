package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() Dataset {
	return Dataset{
		Title:   "Defaulters",
		Headers: []string{"roll_number", "name", "percentage"},
		Rows: []map[string]string{
			{"roll_number": "2023-CS-1", "name": "Ali, Khan", "percentage": "60.00"},
			{"roll_number": "2023-CS-2", "name": "Sara", "percentage": "74.99"},
		},
	}
}

func TestCSVExporterQuotesAndOrders(t *testing.T) {
	out, err := NewCSVExporter().Render(sample())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "roll_number,name,percentage", lines[0])
	assert.Equal(t, `2023-CS-1,"Ali, Khan",60.00`, lines[1])
}

func TestCSVTemplateHeaderOnly(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{Headers: []string{"date", "start_time"}})
	require.NoError(t, err)
	assert.Equal(t, "date,start_time\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestXLSXExporter(t *testing.T) {
	out, err := NewXLSXExporter().Render(sample())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Defaulters"}, f.GetSheetList())
	rows, err := f.GetRows("Defaulters")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "74.99", rows[2][2])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Report", sheetName(""))
	assert.Equal(t, "a-b", sheetName("a/b"))
	assert.Len(t, []rune(sheetName(strings.Repeat("x", 40))), 31)
}

func TestPDFRenderers(t *testing.T) {
	out, err := NewPDFExporter().Render(sample(), "Defaulters")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	slips := []CredentialSlip{{FullName: "Ali", Role: "STUDENT", Identifier: "2023-CS-1", Email: "ali@uni.edu", Password: "pw"}}
	out, err = CredentialSlipRenderer{Institution: "Campus"}.Render(slips, time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = CredentialSlipRenderer{}.Render(nil, time.Now())
	assert.Error(t, err)
}

func TestRenderDispatch(t *testing.T) {
	format, err := ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)
	assert.Contains(t, format.ContentType(), "spreadsheetml")

	_, err = ParseFormat("docx")
	assert.Error(t, err)

	out, err := Render(sample(), FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(out), "roll_number")
}
