package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"masjid/internal/core"
	ports "masjid/internal/sheets"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Fatal("expected credentials error")
	}
}

func TestNewFromEnv_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", os.DevNull+"/missing.json")

	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Fatal("expected read error")
	}
}

func TestClient_UpsertWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", summarySheet: "S", now: time.Now}
	if _, err := c.UpsertMonthSummary(context.Background(), core.NewSnapshot(core.EmptyMonth("2024-03"))); err == nil {
		t.Fatal("expected error without service")
	}
	if _, err := c.UpsertMonthSummary(context.Background(), core.MonthSnapshot{}); err != core.ErrInvalidMonthKey {
		t.Fatalf("expected ErrInvalidMonthKey, got %v", err)
	}
}

func TestFindMonthRow(t *testing.T) {
	values := [][]any{
		{"Month"},
		{"2024-01"},
		{},
		{" 2024-03 "},
	}
	if got := findMonthRow(values, "2024-03"); got != 4 {
		t.Fatalf("existing row: got %d", got)
	}
	if got := findMonthRow(values, "2024-05"); got != 5 {
		t.Fatalf("new row: got %d", got)
	}
}

func TestSummaryRowRoundTrip(t *testing.T) {
	rec := core.EmptyMonth("2024-03")
	rec.OldBalance = core.Money{Cents: 100000}
	rec.Donations = []core.DonationEntry{{Amount: core.Money{Cents: 50050}}}
	rec.ImamSalary.Amount = core.Money{Cents: 200000}
	s := ports.SummaryFromSnapshot(core.NewSnapshot(rec))

	row := summaryRow(s, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	if row[1] != "March 2024" || row[3] != "500.50" || row[8] != "-499.50" {
		t.Fatalf("row: %v", row)
	}

	parsed := parseSummaries([][]any{headerRow(), row, {"junk", 1, 2, 3, 4, 5, 6, 7, 8}})
	if len(parsed) != 1 {
		t.Fatalf("parsed %d rows", len(parsed))
	}
	if parsed[0] != s {
		t.Fatalf("got %+v want %+v", parsed[0], s)
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]int64{
		"1500":         150000,
		"Rs. 1,500.50": 150050,
		"₹2,000":       200000,
		"-12.5":        -1250,
		"":             0,
		"not a number": 0,
	}
	for in, want := range cases {
		if got := parseAmount(in); got.Cents != want {
			t.Errorf("parseAmount(%q) = %d, want %d", in, got.Cents, want)
		}
	}
}

func TestNewFromEnv_OAuthTokenWithoutClient(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_OAUTH_TOKEN_FILE", filepath.Join(t.TempDir(), "token.json"))
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing OAuth client") {
		t.Fatalf("expected missing client error, got %v", err)
	}
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if _, err := LoadToken(path); err == nil {
		t.Fatal("expected error for missing token file")
	}
	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	if err := SaveToken(path, want); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Mode().Perm() != 0600 {
		t.Fatalf("token file mode: %v err=%v", info.Mode(), err)
	}
	got, err := LoadToken(path)
	if err != nil || got.RefreshToken != "r" || got.AccessToken != "a" {
		t.Fatalf("got %+v err=%v", got, err)
	}

	if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadToken(path); err == nil {
		t.Fatal("expected error for empty token")
	}
}
