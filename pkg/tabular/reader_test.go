package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffFull Name,Email,Roll-Number\n" +
		"Ali Khan, ali@uni.edu ,2023-CS-1\n" +
		",,\n" +
		"Sara Malik,sara@uni.edu,2023-CS-2\n"

	table, err := Read("students.CSV", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"full_name", "email", "roll_number"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, "ali@uni.edu", table.Rows[0].Get("email"))
	assert.Equal(t, 4, table.Rows[1].Line)
	assert.Equal(t, "2023-CS-2", table.Rows[1].Get("Roll Number"))
}

func TestReadShortRow(t *testing.T) {
	table, err := Read("t.csv", strings.NewReader("name,email,phone\nBilal,b@uni.edu\n"))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "", table.Rows[0].Get("phone"))
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Name", "Email", "Badge Number"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Dr. Ayesha", "ayesha@uni.edu", "T-001"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := Read("teachers.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "T-001", table.Rows[0].Get("badge_number"))
	assert.Equal(t, 2, table.Rows[0].Line)
}

func TestReadRejectsUnknownFormat(t *testing.T) {
	_, err := Read("students.txt", strings.NewReader("a,b"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Read("empty.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadCountsBlankLines(t *testing.T) {
	table, err := Read("students.csv", strings.NewReader("\nname,email\n\nA,a@x.io\n\"B\nC\",b@x.io\nD,d@x.io\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email"}, table.Headers)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, 4, table.Rows[0].Line)
	assert.Equal(t, 5, table.Rows[1].Line)
	assert.Equal(t, 7, table.Rows[2].Line)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Name", "Email"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"A", "a@x.io"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{"D", "d@x.io"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err = Read("students.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, 4, table.Rows[1].Line)
}
