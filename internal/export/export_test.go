package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/qapilot/backend/internal/models"
)

func sampleCases() []models.TestCase {
	return []models.TestCase{
		{
			ID:             "TC001",
			Title:          "Valid login",
			Description:    "User logs in with valid credentials",
			Preconditions:  "Account exists",
			Steps:          []string{"Open login page", "Enter credentials", "Submit"},
			ExpectedResult: "Dashboard is shown",
			Priority:       "High",
			Type:           "Positive",
		},
		{
			ID:             "TC002",
			Title:          "Empty password",
			Steps:          []string{"Submit with empty password"},
			ExpectedResult: "Validation error",
			Priority:       "Medium",
			Type:           "Negative",
		},
	}
}

func TestCSVHeaderAndRows(t *testing.T) {
	out, err := CSV(sampleCases())
	if err != nil {
		t.Fatalf("CSV() error = %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}

	wantHeader := []string{"ID", "Title", "Description", "Preconditions", "Steps", "Expected Result", "Priority", "Type"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][4] != "Open login page; Enter credentials; Submit" {
		t.Fatalf("steps column = %q", records[1][4])
	}
	if records[2][0] != "TC002" || records[2][7] != "Negative" {
		t.Fatalf("second row = %v", records[2])
	}
}

func TestCSVQuotesEmbeddedDelimiters(t *testing.T) {
	cases := []models.TestCase{{
		ID:    "TC001",
		Title: `Has, comma and "quotes"`,
		Steps: []string{"a", "b"},
	}}

	out, err := CSV(cases)
	if err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if records[1][1] != `Has, comma and "quotes"` {
		t.Fatalf("round-tripped title = %q", records[1][1])
	}
}

func TestJSONRoundTrip(t *testing.T) {
	cases := sampleCases()
	out, err := JSON(cases)
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var decoded []models.TestCase
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if !reflect.DeepEqual(decoded, cases) {
		t.Fatal("decoded cases differ from input")
	}
}

func TestRender(t *testing.T) {
	_, ct, name, err := Render("CSV", sampleCases())
	if err != nil {
		t.Fatalf("Render(csv) error = %v", err)
	}
	if ct != "text/csv" || name != "test_cases.csv" {
		t.Fatalf("csv metadata = %q %q", ct, name)
	}

	_, ct, name, err = Render("json", sampleCases())
	if err != nil {
		t.Fatalf("Render(json) error = %v", err)
	}
	if ct != "application/json" || name != "test_cases.json" {
		t.Fatalf("json metadata = %q %q", ct, name)
	}

	if _, _, _, err := Render("xml", nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Render(xml) error = %v, want ErrUnsupportedFormat", err)
	}
}
