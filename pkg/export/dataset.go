package export

import "fmt"

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Format is a supported report encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a user supplied format string.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatCSV, FormatXLSX, FormatPDF:
		return Format(raw), nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Render encodes the dataset in the requested format.
func Render(data Dataset, format Format) ([]byte, error) {
	switch format {
	case FormatXLSX:
		return NewXLSXExporter().Render(data)
	case FormatPDF:
		return NewPDFExporter().Render(data, data.Title)
	case FormatCSV, "":
		return NewCSVExporter().Render(data)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func record(data Dataset, row map[string]string) []string {
	out := make([]string, len(data.Headers))
	for i, header := range data.Headers {
		out[i] = row[header]
	}
	return out
}
