package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"meterbot/internal/core"
)

type fakeSheets struct {
	mu       sync.Mutex
	appended [][]any
	header   [][]any
	query    map[string]string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, vr.Values...)
		f.query = map[string]string{
			"valueInputOption": r.URL.Query().Get("valueInputOption"),
			"insertDataOption": r.URL.Query().Get("insertDataOption"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-id",
			"updates":       map[string]any{"updatedRange": "Calculations!A2:N3", "updatedRows": len(vr.Values)},
		})
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"range": "Calculations!A1:N1", "values": f.header})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		f.header = vr.Values
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": "Calculations!A1:N1"})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewWithOptions(context.Background(), "sheet-id", "",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func sampleCalculation() core.ConfirmedCalculation {
	d := decimal.RequireFromString
	return core.ConfirmedCalculation{
		ID:   7,
		User: "42",
		Calculation: core.Calculation{
			Period:    core.Period{Year: 2024, Month: 12},
			CreatedAt: time.Date(2024, 12, 20, 10, 30, 0, 0, time.UTC),
			Items: []core.LineItem{
				{Category: core.Water, Previous: d("71"), Current: d("80"), Consumption: d("9"), Rate: d("205.992"), Cost: d("1853.928")},
				{Category: core.Gas, Previous: d("1366"), Current: d("1366"), Consumption: d("0"), Rate: d("143.7"), Cost: d("0")},
			},
			Total: d("1853.928"),
		},
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-id", CredentialsFile: "/non/existent.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_AppendCalculation(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.AppendCalculation(context.Background(), sampleCalculation())
	if err != nil {
		t.Fatalf("AppendCalculation: %v", err)
	}
	if ref != "Calculations!A2:N3" {
		t.Errorf("ref = %q", ref)
	}
	if len(fake.appended) != 2 {
		t.Fatalf("appended %d rows, want 2", len(fake.appended))
	}
	first := fake.appended[0]
	if first[0] != "7" || first[4] != "water" || first[10] != "1853.93" {
		t.Errorf("first row = %v", first)
	}
	if fake.query["valueInputOption"] != "USER_ENTERED" || fake.query["insertDataOption"] != "INSERT_ROWS" {
		t.Errorf("query = %v", fake.query)
	}
}

func TestClient_AppendCalculationEscapesFormulaUsers(t *testing.T) {
	tests := []struct {
		user core.UserID
		want string
	}{
		{"=IMPORTXML(\"http://x\")", "'=IMPORTXML(\"http://x\")"},
		{"+1", "'+1"},
		{"-7", "'-7"},
		{"@bob", "'@bob"},
		{"alice", "alice"},
	}
	for _, tt := range tests {
		t.Run(string(tt.user), func(t *testing.T) {
			fake := &fakeSheets{}
			c := newTestClient(t, fake)
			calc := sampleCalculation()
			calc.User = tt.user

			if _, err := c.AppendCalculation(context.Background(), calc); err != nil {
				t.Fatal(err)
			}
			for _, row := range fake.appended {
				if row[1] != tt.want {
					t.Errorf("user cell = %v, want %q", row[1], tt.want)
				}
			}
		})
	}
}

func TestClient_AppendCalculationWithoutItems(t *testing.T) {
	c := newTestClient(t, &fakeSheets{})
	calc := sampleCalculation()
	calc.Items = nil
	if _, err := c.AppendCalculation(context.Background(), calc); err == nil {
		t.Fatal("expected an error for an empty calculation")
	}
}

func TestClient_EnsureHeader(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fake.header) != 1 || fake.header[0][0] != "Calculation" {
		t.Fatalf("header = %v", fake.header)
	}

	fake.header = [][]any{{"Custom"}}
	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fake.header[0][0] != "Custom" {
		t.Error("an existing header must be left alone")
	}
}
