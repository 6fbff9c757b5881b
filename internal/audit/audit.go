// Package audit computes advisory security findings over a decrypted view of
// the vault: password strength, reuse clusters, expiry, stale passwords and
// breach exposure. Findings are recomputed on demand and never persisted;
// they inform the user but gate nothing.
package audit

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/live-labs/passlock/internal/vault"
)

// Kind classifies a finding.
type Kind int

const (
	KindWeak Kind = iota
	KindDuplicate
	KindExpired
	KindBreached
	KindBreachUnknown
	KindOldAge
)

func (k Kind) String() string {
	switch k {
	case KindWeak:
		return "weak"
	case KindDuplicate:
		return "duplicate"
	case KindExpired:
		return "expired"
	case KindBreached:
		return "breached"
	case KindBreachUnknown:
		return "breach-unknown"
	case KindOldAge:
		return "old"
	default:
		return "unknown"
	}
}

// Severity orders findings for display.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// Finding is one advisory result for one entry.
type Finding struct {
	EntryID    string
	Title      string
	Kind       Kind
	Severity   Severity
	Detail     string
	ComputedAt time.Time
}

// DefaultMaxPasswordAge marks passwords unchanged for longer as stale.
const DefaultMaxPasswordAge = 365 * 24 * time.Hour

// FindWeak scores every password and reports entries below Strong.
func FindWeak(entries []*vault.Entry, now time.Time) []Finding {
	var out []Finding
	for _, e := range entries {
		score, category := ScoreStrength(e.Password)
		if category >= Strong {
			continue
		}
		sev := SeverityWarning
		if category == Weak {
			sev = SeverityCritical
		}
		out = append(out, Finding{
			EntryID:    e.ID,
			Title:      e.Title,
			Kind:       KindWeak,
			Severity:   sev,
			Detail:     category.String() + " password, score " + strconv.Itoa(score),
			ComputedAt: now,
		})
	}
	return out
}

// FindDuplicates groups entries sharing an identical password. Each returned
// group holds at least two entry IDs, sorted; groups are ordered by their
// first member.
func FindDuplicates(entries []*vault.Entry) [][]string {
	byPassword := map[string][]string{}
	for _, e := range entries {
		byPassword[e.Password] = append(byPassword[e.Password], e.ID)
	}
	var groups [][]string
	for _, ids := range byPassword {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		groups = append(groups, ids)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

func duplicateFindings(entries []*vault.Entry, now time.Time) []Finding {
	titles := map[string]string{}
	for _, e := range entries {
		titles[e.ID] = e.Title
	}
	var out []Finding
	for _, group := range FindDuplicates(entries) {
		for _, id := range group {
			out = append(out, Finding{
				EntryID:    id,
				Title:      titles[id],
				Kind:       KindDuplicate,
				Severity:   SeverityWarning,
				Detail:     "password shared by " + strconv.Itoa(len(group)) + " entries",
				ComputedAt: now,
			})
		}
	}
	return out
}

// FindExpired reports entries whose expiresAt is in the past.
func FindExpired(entries []*vault.Entry, now time.Time) []Finding {
	var out []Finding
	for _, e := range entries {
		if e.ExpiresAt == nil || now.Before(*e.ExpiresAt) {
			continue
		}
		out = append(out, Finding{
			EntryID:    e.ID,
			Title:      e.Title,
			Kind:       KindExpired,
			Severity:   SeverityWarning,
			Detail:     "expired " + e.ExpiresAt.Format("2006-01-02"),
			ComputedAt: now,
		})
	}
	return out
}

// FindOld reports entries whose password has not changed within maxAge.
func FindOld(entries []*vault.Entry, now time.Time, maxAge time.Duration) []Finding {
	var out []Finding
	for _, e := range entries {
		if now.Sub(e.UpdatedAt) <= maxAge {
			continue
		}
		out = append(out, Finding{
			EntryID:    e.ID,
			Title:      e.Title,
			Kind:       KindOldAge,
			Severity:   SeverityInfo,
			Detail:     "not updated since " + e.UpdatedAt.Format("2006-01-02"),
			ComputedAt: now,
		})
	}
	return out
}

// Report is the outcome of a full audit pass.
type Report struct {
	Findings   []Finding
	Checked    int
	Score      int // overall vault health, 0-100
	ComputedAt time.Time
}

// Auditor runs the full advisory pass. Breaches is optional; when nil the
// breach check is skipped entirely.
type Auditor struct {
	Breaches BreachLookup
	MaxAge   time.Duration
	Log      zerolog.Logger
}

// Run computes every finding over the given decrypted entries. The context
// bounds only the breach lookups; all other checks are local and fast.
func (a *Auditor) Run(ctx context.Context, entries []*vault.Entry, now time.Time) (*Report, error) {
	maxAge := a.MaxAge
	if maxAge == 0 {
		maxAge = DefaultMaxPasswordAge
	}

	report := &Report{Checked: len(entries), ComputedAt: now}
	report.Findings = append(report.Findings, FindWeak(entries, now)...)
	report.Findings = append(report.Findings, duplicateFindings(entries, now)...)
	report.Findings = append(report.Findings, FindExpired(entries, now)...)
	report.Findings = append(report.Findings, FindOld(entries, now, maxAge)...)

	if a.Breaches != nil {
		breached, err := CheckBreaches(ctx, entries, a.Breaches, now)
		if err != nil {
			// Only context cancellation aborts; lookup errors became
			// breach-unknown findings already.
			return nil, err
		}
		report.Findings = append(report.Findings, breached...)
	}

	report.Score = healthScore(report)
	a.Log.Debug().
		Int("entries", report.Checked).
		Int("findings", len(report.Findings)).
		Int("score", report.Score).
		Msg("audit complete")
	return report, nil
}

// healthScore starts at 100 and deducts per finding, weighted by severity.
func healthScore(r *Report) int {
	if r.Checked == 0 {
		return 100
	}
	score := 100
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityCritical:
			score -= 10
		case SeverityWarning:
			score -= 5
		case SeverityInfo:
			score -= 1
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}
