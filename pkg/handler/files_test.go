package handler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"taskrunner/pkg/llm"
	"taskrunner/pkg/taskerr"
	"testing"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ---------------------------------------------------------------------------
// Weekday count
// ---------------------------------------------------------------------------

func TestCountWeekday(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		dates string
		file  string
		want  string
	}{
		{"wednesdays", "Count the number of Wednesdays", "2024-01-03 Wed\nWed Jan 10\n2024-01-04 Thu\nwed lowercase\n", "dates-wednesdays.txt", "2"},
		{"empty file", "count wednesdays", "", "dates-wednesdays.txt", "0"},
		{"sundays", "How many Sundays? count them", "Sun, 07 Jan 2024\nSat, 06 Jan 2024\n", "dates-sundays.txt", "1"},
		{"first weekday wins", "count the fridays, not the mondays", "Fri\nMon\nMon\n", "dates-fridays.txt", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := newSandbox(t)
			writeInput(t, sb, "dates.txt", tt.dates)
			res, err := run1(t, NewCountWeekday(sb), tt.text)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Output != tt.file {
				t.Errorf("Output = %q, want %q", res.Output, tt.file)
			}
			if got := readOutput(t, sb, tt.file); got != tt.want {
				t.Errorf("count = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCountWeekdayLongLine(t *testing.T) {
	sb := newSandbox(t)
	writeInput(t, sb, "dates.txt", "2024-01-03 Wed\n"+strings.Repeat("x", 2<<20)+"\n2024-01-10 Wed\n")

	if _, err := run1(t, NewCountWeekday(sb), "count the wednesdays"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := readOutput(t, sb, "dates-wednesdays.txt"); got != "2" {
		t.Errorf("count = %q, want %q", got, "2")
	}
}

func TestCountWeekdayMissingInput(t *testing.T) {
	_, err := run1(t, NewCountWeekday(newSandbox(t)), "count wednesdays")
	assertKind(t, err, taskerr.KindNotFound)
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

func TestSortContacts(t *testing.T) {
	sb := newSandbox(t)
	writeInput(t, sb, "contacts.json", `[
  {"first_name": "Zoe", "last_name": "Adams", "email": "z@a.io"},
  {"first_name": "Amy", "last_name": "Young", "email": "ay@x.io"},
  {"first_name": "Amy", "last_name": "Baker", "email": "ab@x.io"},
  {"last_name": "Nobody", "age": 1.50}
]`)

	h := NewSortContacts(sb)
	if _, err := run1(t, h, "sort contacts"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := `[
    {
        "last_name": "Nobody",
        "age": 1.50
    },
    {
        "first_name": "Amy",
        "last_name": "Baker",
        "email": "ab@x.io"
    },
    {
        "first_name": "Amy",
        "last_name": "Young",
        "email": "ay@x.io"
    },
    {
        "first_name": "Zoe",
        "last_name": "Adams",
        "email": "z@a.io"
    }
]
`
	first := readOutput(t, sb, "contacts.json")
	if first != want {
		t.Fatalf("sorted contacts =\n%s\nwant\n%s", first, want)
	}

	if _, err := run1(t, h, "sort contacts"); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if second := readOutput(t, sb, "contacts.json"); second != first {
		t.Errorf("sorting is not idempotent:\n%s", second)
	}
}

func TestSortContactsErrors(t *testing.T) {
	sb := newSandbox(t)
	_, err := run1(t, NewSortContacts(sb), "sort contacts")
	assertKind(t, err, taskerr.KindNotFound)

	writeInput(t, sb, "contacts.json", `{"not": "an array"}`)
	_, err = run1(t, NewSortContacts(sb), "sort contacts")
	assertKind(t, err, taskerr.KindHandlerExecution)
}

// ---------------------------------------------------------------------------
// Recent logs
// ---------------------------------------------------------------------------

func TestRecentLogs(t *testing.T) {
	sb := newSandbox(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		name := filepath.Join("logs", "log-"+itoa(i)+".log")
		p := writeInput(t, sb, name, "  first line "+itoa(i)+"  \nsecond\n")
		if err := os.Chtimes(p, base, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}
	// Same mtime as log-11: name order breaks the tie.
	p := writeInput(t, sb, "logs/a-tie.log", "tie")
	if err := os.Chtimes(p, base, base.Add(11*time.Hour)); err != nil {
		t.Fatal(err)
	}
	writeInput(t, sb, "logs/notes.txt", "ignored")
	if err := os.MkdirAll(filepath.Join(sb.Root(), "logs", "dir.log"), 0755); err != nil {
		t.Fatal(err)
	}

	res, err := run1(t, NewRecentLogs(sb), "write the most recent logs")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "logs-recent.txt" {
		t.Errorf("Output = %q", res.Output)
	}

	want := "tie\nfirst line 11\nfirst line 10\nfirst line 9\nfirst line 8\n" +
		"first line 7\nfirst line 6\nfirst line 5\nfirst line 4\nfirst line 3\n"
	if got := readOutput(t, sb, "logs-recent.txt"); got != want {
		t.Errorf("logs-recent.txt =\n%q\nwant\n%q", got, want)
	}
}

func TestRecentLogsMissingDir(t *testing.T) {
	_, err := run1(t, NewRecentLogs(newSandbox(t)), "logs")
	assertKind(t, err, taskerr.KindNotFound)
}

func TestRecentLogsRejectsEscapingSymlink(t *testing.T) {
	sb := newSandbox(t)
	outside := filepath.Join(t.TempDir(), "secret.log")
	if err := os.WriteFile(outside, []byte("secret"), 0644); err != nil {
		t.Fatal(err)
	}
	writeInput(t, sb, "logs/ok.log", "ok")
	if err := os.Symlink(outside, filepath.Join(sb.Root(), "logs", "evil.log")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := run1(t, NewRecentLogs(sb), "logs")
	assertKind(t, err, taskerr.KindPathViolation)
}

// ---------------------------------------------------------------------------
// Docs index
// ---------------------------------------------------------------------------

func TestDocsIndex(t *testing.T) {
	sb := newSandbox(t)
	writeInput(t, sb, "docs/a.md", "# Title A\n\nbody\n# Second\n")
	writeInput(t, sb, "docs/sub/b.md", "intro paragraph\n\n## Not this\n\n# *Bold* title\n")
	writeInput(t, sb, "docs/c.md", "## only level two\n")
	writeInput(t, sb, "docs/d.md", "Setext\n======\n")
	writeInput(t, sb, "docs/e.txt", "# not markdown\n")

	res, err := run1(t, NewDocsIndex(sb), "extract H1 from markdown files")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "docs/index.json" {
		t.Errorf("Output = %q", res.Output)
	}

	want := `{
    "a.md": "Title A",
    "d.md": "Setext",
    "sub/b.md": "Bold title"
}
`
	if got := readOutput(t, sb, "docs/index.json"); got != want {
		t.Errorf("index.json =\n%s\nwant\n%s", got, want)
	}
}

func TestDocsIndexMissingDir(t *testing.T) {
	_, err := run1(t, NewDocsIndex(newSandbox(t)), "markdown extract")
	assertKind(t, err, taskerr.KindNotFound)
}

// ---------------------------------------------------------------------------
// Email sender
// ---------------------------------------------------------------------------

func TestEmailSender(t *testing.T) {
	sb := newSandbox(t)
	writeInput(t, sb, "email.txt", "Delivered-To: me@x.io\nFrom: \"Jane Doe\" <jane.doe@example.com>\nTo: Bob <bob@example.com>\n\nHi")

	if _, err := run1(t, NewEmailSender(sb), "extract the email sender"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := readOutput(t, sb, "email-sender.txt"); got != "jane.doe@example.com" {
		t.Errorf("sender = %q", got)
	}

	writeInput(t, sb, "email.txt", "no headers here")
	_, err := run1(t, NewEmailSender(sb), "extract the email sender")
	assertKind(t, err, taskerr.KindNotFound)
}

// ---------------------------------------------------------------------------
// Inference handlers
// ---------------------------------------------------------------------------

var pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"

func TestCardNumber(t *testing.T) {
	sb := newSandbox(t)
	writeInput(t, sb, "credit-card.png", pngHeader)
	model := &fakeModel{answer: " 4111 1111-1111 1111\n"}

	if _, err := run1(t, NewCardNumber(sb, model), "extract card"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := readOutput(t, sb, "credit-card.txt"); got != "4111111111111111" {
		t.Errorf("card = %q", got)
	}
	if len(model.images) != 1 || model.images[0].MimeType != "image/png" || model.images[0].Base64 == "" {
		t.Errorf("image sent = %+v", model.images)
	}
}

func TestCardNumberFailures(t *testing.T) {
	sb := newSandbox(t)

	_, err := run1(t, NewCardNumber(sb, &fakeModel{}), "extract card")
	assertKind(t, err, taskerr.KindNotFound)

	writeInput(t, sb, "credit-card.png", pngHeader)

	_, err = run1(t, NewCardNumber(sb, &fakeModel{answer: "I cannot read this"}), "extract card")
	assertKind(t, err, taskerr.KindHandlerExecution)

	_, err = run1(t, NewCardNumber(sb, &fakeModel{answer: " - "}), "extract card")
	assertKind(t, err, taskerr.KindHandlerExecution)

	_, err = run1(t, NewCardNumber(sb, &fakeModel{err: errors.New("503")}), "extract card")
	assertKind(t, err, taskerr.KindHandlerExecution)

	_, err = run1(t, NewCardNumber(sb, nil), "extract card")
	assertKind(t, err, taskerr.KindHandlerExecution)
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Errorf("missing model should wrap ErrNotConfigured: %v", err)
	}

	if _, err := os.Stat(filepath.Join(sb.Root(), "credit-card.txt")); !os.IsNotExist(err) {
		t.Error("no output should be written on failure")
	}
}

func TestSimilarComments(t *testing.T) {
	sb := newSandbox(t)
	writeInput(t, sb, "comments.txt", "great product\n\n  awful  \nreally great product\n")
	model := &fakeModel{vecs: [][]float64{{1, 0}, {0, 1}, {1, 0.1}}}

	if _, err := run1(t, NewSimilarComments(sb, model), "similar comments"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := readOutput(t, sb, "comments-similar.txt"); got != "great product\nreally great product\n" {
		t.Errorf("pair = %q", got)
	}
	if len(model.texts) != 1 || len(model.texts[0]) != 3 || model.texts[0][1] != "awful" {
		t.Errorf("embedded texts = %v", model.texts)
	}
}

func TestSimilarCommentsFailures(t *testing.T) {
	sb := newSandbox(t)
	writeInput(t, sb, "comments.txt", "only one\n\n")
	_, err := run1(t, NewSimilarComments(sb, &fakeModel{}), "similar comments")
	assertKind(t, err, taskerr.KindHandlerExecution)

	writeInput(t, sb, "comments.txt", "a\nb\nc\n")
	_, err = run1(t, NewSimilarComments(sb, &fakeModel{vecs: [][]float64{{1}, {1}}}), "similar comments")
	assertKind(t, err, taskerr.KindHandlerExecution)

	_, err = run1(t, NewSimilarComments(sb, &fakeModel{vecs: [][]float64{{1, 0}, {1}, {0, 1}}}), "similar comments")
	assertKind(t, err, taskerr.KindHandlerExecution)
}

func TestMostSimilarPairTies(t *testing.T) {
	i, j, err := mostSimilarPair([][]float64{{1, 0}, {1, 0}, {1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if i != 0 || j != 1 {
		t.Errorf("tie resolved to (%d,%d), want (0,1)", i, j)
	}

	// All pairs opposite: still picks a pair.
	i, j, err = mostSimilarPair([][]float64{{1}, {-1}})
	if err != nil || i != 0 || j != 1 {
		t.Errorf("got (%d,%d,%v), want (0,1,nil)", i, j, err)
	}

	// Zero vectors compare as 0, not NaN.
	i, j, _ = mostSimilarPair([][]float64{{0, 0}, {1, 0}, {0.9, 0.1}})
	if i != 1 || j != 2 {
		t.Errorf("got (%d,%d), want (1,2)", i, j)
	}
}

// ---------------------------------------------------------------------------
// Ticket sales
// ---------------------------------------------------------------------------

func createSalesDB(t *testing.T, path, inserts string) {
	t.Helper()
	conn, err := sqlite.OpenConn(path)
	if err != nil {
		t.Fatalf("OpenConn: %v", err)
	}
	defer conn.Close()
	script := `CREATE TABLE tickets (type TEXT, units INTEGER, price INTEGER);` + inserts
	if err := sqlitex.ExecuteScript(conn, script, nil); err != nil {
		t.Fatalf("ExecuteScript: %v", err)
	}
}

func TestTicketSales(t *testing.T) {
	sb := newSandbox(t)
	createSalesDB(t, filepath.Join(sb.Root(), "ticket-sales.db"), `
		INSERT INTO tickets VALUES ('Gold', 2, 10);
		INSERT INTO tickets VALUES ('Gold', 3, 5);
		INSERT INTO tickets VALUES ('Silver', 100, 100);
	`)

	res, err := run1(t, NewTicketSales(sb), "total sales of gold")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "ticket-sales-gold.txt" {
		t.Errorf("Output = %q", res.Output)
	}
	if got := readOutput(t, sb, "ticket-sales-gold.txt"); got != "35\n" {
		t.Errorf("total = %q, want %q", got, "35\n")
	}
}

func TestTicketSalesNoMatches(t *testing.T) {
	sb := newSandbox(t)
	createSalesDB(t, filepath.Join(sb.Root(), "ticket-sales.db"), `INSERT INTO tickets VALUES ('Silver', 1, 1);`)

	if _, err := run1(t, NewTicketSales(sb), "total sales of gold"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := readOutput(t, sb, "ticket-sales-gold.txt"); got != "0\n" {
		t.Errorf("total = %q, want %q", got, "0\n")
	}
}

func TestTicketSalesMissingDB(t *testing.T) {
	_, err := run1(t, NewTicketSales(newSandbox(t)), "total sales of gold")
	assertKind(t, err, taskerr.KindNotFound)
}
