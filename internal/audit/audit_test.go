package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/live-labs/passlock/internal/storage"
	"github.com/live-labs/passlock/internal/vault"
)

func entry(id, title, password string) *vault.Entry {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &vault.Entry{
		EntryMeta: storage.EntryMeta{ID: id, Title: title, CreatedAt: now, UpdatedAt: now},
		Username:  "user",
		Password:  password,
	}
}

func TestScoreStrength(t *testing.T) {
	cases := []struct {
		password string
		want     Category
	}{
		{"Sup3r$ecret!", Strong},
		{"1234", Weak},
		{"password", Weak},
		{"qwerty", Weak},
		{"aaaaaaaa", Weak},
		{"correct horse battery staple", Strong},
		{"Tr0ub4dor&3xKq!mZw9", VeryStrong},
		{"", Weak},
	}
	for _, tc := range cases {
		score, category := ScoreStrength(tc.password)
		if category < tc.want {
			t.Errorf("ScoreStrength(%q) = %d (%s), want at least %s",
				tc.password, score, category, tc.want)
		}
		if tc.want == Weak && category != Weak {
			t.Errorf("ScoreStrength(%q) = %d (%s), want weak", tc.password, score, category)
		}
		if score < 0 || score > 100 {
			t.Errorf("ScoreStrength(%q) = %d, out of range", tc.password, score)
		}
	}
}

func TestScoreStrengthMonotonicOnEdit(t *testing.T) {
	strong, _ := ScoreStrength("Sup3r$ecret!")
	weak, _ := ScoreStrength("1234")
	if strong < 60 {
		t.Errorf("Expected a strong score for the complex password, got %d", strong)
	}
	if weak >= 40 {
		t.Errorf("Expected a weak score for 1234, got %d", weak)
	}
}

func TestFindDuplicates(t *testing.T) {
	entries := []*vault.Entry{
		entry("A", "Mail", "x"),
		entry("B", "Bank", "x"),
		entry("C", "Forum", "y"),
	}
	groups := FindDuplicates(entries)
	if len(groups) != 1 {
		t.Fatalf("Expected exactly one duplicate group, got %d", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0] != "A" || groups[0][1] != "B" {
		t.Errorf("Expected group {A,B}, got %v", groups[0])
	}
	for _, id := range groups[0] {
		if id == "C" {
			t.Error("C must not appear in any group")
		}
	}
}

func TestFindExpiredAndOld(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	e1 := entry("1", "Expired", "pw")
	e1.ExpiresAt = &past
	e2 := entry("2", "Live", "pw")
	e2.ExpiresAt = &future
	e3 := entry("3", "Stale", "pw")
	e3.UpdatedAt = now.Add(-400 * 24 * time.Hour)

	expired := FindExpired([]*vault.Entry{e1, e2, e3}, now)
	if len(expired) != 1 || expired[0].EntryID != "1" {
		t.Errorf("Expected only entry 1 expired, got %v", expired)
	}

	old := FindOld([]*vault.Entry{e1, e2, e3}, now, DefaultMaxPasswordAge)
	if len(old) != 1 || old[0].EntryID != "3" {
		t.Errorf("Expected only entry 3 old, got %v", old)
	}
}

// fakeLookup maps passwords to breach counts; unknown passwords error.
type fakeLookup struct {
	counts map[string]int
	calls  int
}

func (f *fakeLookup) CheckPassword(ctx context.Context, password string) (int, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count, ok := f.counts[password]
	if !ok {
		return 0, errors.New("service unavailable")
	}
	return count, nil
}

func TestCheckBreaches(t *testing.T) {
	entries := []*vault.Entry{
		entry("A", "Mail", "pwned"),
		entry("B", "Bank", "pwned"),
		entry("C", "Forum", "clean"),
		entry("D", "Shop", "unknown"),
	}
	lookup := &fakeLookup{counts: map[string]int{"pwned": 42, "clean": 0}}

	findings, err := CheckBreaches(context.Background(), entries, lookup, time.Now())
	if err != nil {
		t.Fatalf("CheckBreaches failed: %v", err)
	}

	// pwned and pwned share one lookup
	if lookup.calls != 3 {
		t.Errorf("Expected 3 lookups for 3 distinct passwords, got %d", lookup.calls)
	}

	kinds := map[string]Kind{}
	for _, f := range findings {
		kinds[f.EntryID] = f.Kind
	}
	if kinds["A"] != KindBreached || kinds["B"] != KindBreached {
		t.Errorf("A and B should be breached: %v", kinds)
	}
	if _, flagged := kinds["C"]; flagged {
		t.Error("C should have no breach finding")
	}
	// Lookup failure degrades to unknown, never to safe
	if kinds["D"] != KindBreachUnknown {
		t.Errorf("D should be breach-unknown: %v", kinds)
	}
}

func TestCheckBreachesCancellation(t *testing.T) {
	var entries []*vault.Entry
	for i := 0; i < 50; i++ {
		entries = append(entries, entry(fmt.Sprintf("id-%d", i), "T", fmt.Sprintf("pw-%d", i)))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CheckBreaches(ctx, entries, &fakeLookup{}, time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestHIBPClient(t *testing.T) {
	// SHA-1("password") = 5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8
	const suffix = "1E4C9B93F3F0682250B6CF8331B7EE68FD8"
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprintf(w, "0018A45C4D1DEF81644B54AB7F969B88D65:3\r\n")
		fmt.Fprintf(w, "%s:3861493\r\n", suffix)
		fmt.Fprintf(w, "011053FD0102E94D6AE2F8B83D76FAF94F6:1\r\n")
	}))
	defer srv.Close()

	client := &HIBPClient{HTTPClient: srv.Client(), BaseURL: srv.URL}
	count, err := client.CheckPassword(context.Background(), "password")
	if err != nil {
		t.Fatalf("CheckPassword failed: %v", err)
	}
	if count != 3861493 {
		t.Errorf("Expected count 3861493, got %d", count)
	}
	// Only the 5-char prefix may leave the machine
	if gotPath != "/5BAA6" {
		t.Errorf("Expected request path /5BAA6, got %s", gotPath)
	}

	count, err = client.CheckPassword(context.Background(), "definitely-not-in-the-fixture")
	if err != nil {
		t.Fatalf("CheckPassword failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 for an absent suffix, got %d", count)
	}
}

func TestAuditorRun(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	entries := []*vault.Entry{
		entry("A", "Mail", "1234"),
		entry("B", "Bank", "1234"),
		entry("C", "Good", "Tr0ub4dor&3xKq!mZw9"),
	}

	a := &Auditor{Breaches: &fakeLookup{counts: map[string]int{
		"1234":                999,
		"Tr0ub4dor&3xKq!mZw9": 0,
	}}}
	report, err := a.Run(context.Background(), entries, now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Checked != 3 {
		t.Errorf("Expected 3 checked, got %d", report.Checked)
	}
	counts := map[Kind]int{}
	for _, f := range report.Findings {
		counts[f.Kind]++
	}
	if counts[KindWeak] != 2 {
		t.Errorf("Expected 2 weak findings, got %d", counts[KindWeak])
	}
	if counts[KindDuplicate] != 2 {
		t.Errorf("Expected 2 duplicate findings, got %d", counts[KindDuplicate])
	}
	if counts[KindBreached] != 2 {
		t.Errorf("Expected 2 breached findings, got %d", counts[KindBreached])
	}
	if report.Score >= 100 {
		t.Errorf("Findings must lower the health score, got %d", report.Score)
	}

	// Empty vault scores perfect
	empty, err := a.Run(context.Background(), nil, now)
	if err != nil {
		t.Fatalf("Run on empty vault failed: %v", err)
	}
	if empty.Score != 100 {
		t.Errorf("Empty vault should score 100, got %d", empty.Score)
	}
}
