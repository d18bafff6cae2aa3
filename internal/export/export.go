// Package export renders generated test cases for download as CSV or JSON.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qapilot/backend/internal/models"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

var csvHeader = []string{"ID", "Title", "Description", "Preconditions", "Steps", "Expected Result", "Priority", "Type"}

// Render serializes the test cases in the requested format and returns the
// payload together with its content type and attachment filename.
func Render(format string, cases []models.TestCase) (payload []byte, contentType, filename string, err error) {
	switch strings.ToLower(format) {
	case "csv":
		payload, err = CSV(cases)
		return payload, "text/csv", "test_cases.csv", err
	case "json":
		payload, err = JSON(cases)
		return payload, "application/json", "test_cases.json", err
	default:
		return nil, "", "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// CSV writes one row per test case under a fixed header. Steps are joined
// with "; " into a single column.
func CSV(cases []models.TestCase) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, tc := range cases {
		row := []string{
			tc.ID,
			tc.Title,
			tc.Description,
			tc.Preconditions,
			strings.Join(tc.Steps, "; "),
			tc.ExpectedResult,
			tc.Priority,
			tc.Type,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func JSON(cases []models.TestCase) ([]byte, error) {
	return json.MarshalIndent(cases, "", "  ")
}
