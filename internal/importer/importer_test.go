package importer

import (
	"strings"
	"testing"
)

func TestCSVSource(t *testing.T) {
	input := `Title,Username,Password,Website,Notes,Folder,Tags
Mail,a@b.com,Sup3r$ecret!,https://mail.example.com,personal,email,work;primary
Bank,joe,hunter2,https://bank.example.com,,finance,
`
	drafts, err := CSVSource{}.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("Expected 2 drafts, got %d", len(drafts))
	}
	d := drafts[0]
	if d.Title != "Mail" || d.Username != "a@b.com" || d.Password != "Sup3r$ecret!" ||
		d.URL != "https://mail.example.com" || d.Notes != "personal" || d.Category != "email" {
		t.Errorf("Unexpected draft: %+v", d)
	}
	if len(d.Tags) != 2 || d.Tags[0] != "work" || d.Tags[1] != "primary" {
		t.Errorf("Unexpected tags: %v", d.Tags)
	}
	if drafts[1].Category != "finance" {
		t.Errorf("Folder column should map to category: %+v", drafts[1])
	}
}

func TestCSVSourceAliases(t *testing.T) {
	// Lowercase aliases from another manager's export
	input := "name,login,password,url\nForum,alice,pw123,https://forum.example.org\n"
	drafts, err := CSVSource{}.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Title != "Forum" || drafts[0].Username != "alice" {
		t.Errorf("Unexpected drafts: %+v", drafts)
	}
}

func TestCSVSourceRejectsUnknownHeader(t *testing.T) {
	if _, err := (CSVSource{}).Parse(strings.NewReader("foo,bar\n1,2\n")); err == nil {
		t.Fatal("Expected an error for an unrecognized header")
	}
}

func TestJSONSource(t *testing.T) {
	input := `[
		{"title":"Mail","username":"a@b.com","password":"pw","url":"https://m.example.com","tags":["work"]},
		{"title":"Bank","username":"joe","password":"hunter2","category":"finance","favorite":true}
	]`
	drafts, err := JSONSource{}.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("Expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].Title != "Mail" || len(drafts[0].Tags) != 1 {
		t.Errorf("Unexpected draft: %+v", drafts[0])
	}
	if !drafts[1].Favorite || drafts[1].Category != "finance" {
		t.Errorf("Unexpected draft: %+v", drafts[1])
	}
}

func TestJSONSourceRejectsGarbage(t *testing.T) {
	if _, err := (JSONSource{}).Parse(strings.NewReader("{not json")); err == nil {
		t.Fatal("Expected a parse error")
	}
}

func TestChromeSource(t *testing.T) {
	input := `name,url,username,password,note
Example Mail,https://mail.example.com/,a@b.com,Sup3r$ecret!,from chrome
,https://bare.example.org/login,joe,pw2,
`
	drafts, err := ChromeSource{}.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("Expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].Title != "Example Mail" || drafts[0].Notes != "from chrome" {
		t.Errorf("Unexpected draft: %+v", drafts[0])
	}
	// Nameless rows take the URL host as their title
	if drafts[1].Title != "bare.example.org" {
		t.Errorf("Expected host fallback title, got %q", drafts[1].Title)
	}
}

func TestChromeSourceRejectsOtherCSV(t *testing.T) {
	if _, err := (ChromeSource{}).Parse(strings.NewReader("title,user\nx,y\n")); err == nil {
		t.Fatal("Expected an error for a non-chrome header")
	}
}

func TestForFormatAndDetect(t *testing.T) {
	for _, format := range []string{"csv", "json", "chrome", "CSV"} {
		if _, err := ForFormat(format); err != nil {
			t.Errorf("ForFormat(%q) failed: %v", format, err)
		}
	}
	if _, err := ForFormat("xml"); err == nil {
		t.Error("ForFormat(xml) should fail")
	}

	src, err := Detect("export.csv")
	if err != nil || src.Name() != "csv" {
		t.Errorf("Detect(export.csv) = %v, %v", src, err)
	}
	src, err = Detect("vault.JSON")
	if err != nil || src.Name() != "json" {
		t.Errorf("Detect(vault.JSON) = %v, %v", src, err)
	}
	if _, err := Detect("dump.bin"); err == nil {
		t.Error("Detect(dump.bin) should fail")
	}
}
