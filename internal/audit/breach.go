package audit

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/live-labs/passlock/internal/vault"
)

// BreachLookup answers "how many times has this password appeared in known
// breaches". Implementations must honor the context; a failure means
// "unknown", and callers must never treat it as "safe".
type BreachLookup interface {
	CheckPassword(ctx context.Context, password string) (count int, err error)
}

// HIBPClient queries the Have I Been Pwned range API using k-anonymity: only
// the first five hex characters of the password's SHA-1 leave the machine.
type HIBPClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

const defaultHIBPBaseURL = "https://api.pwnedpasswords.com/range"

// NewHIBPClient returns a client with a bounded per-request timeout.
func NewHIBPClient(timeout time.Duration) *HIBPClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HIBPClient{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    defaultHIBPBaseURL,
	}
}

func (c *HIBPClient) CheckPassword(ctx context.Context, password string) (int, error) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	base := c.BaseURL
	if base == "" {
		base = defaultHIBPBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+prefix, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Add-Padding", "true")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("breach lookup returned status %d", resp.StatusCode)
	}

	// Response lines are "SUFFIX:COUNT". Padding lines carry count 0.
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		rest, ok := strings.CutPrefix(line, suffix+":")
		if !ok {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return 0, fmt.Errorf("malformed breach lookup response: %w", err)
		}
		return count, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, nil
}

// CheckBreaches looks up every distinct password once and fans the result out
// to the entries sharing it. A failed lookup produces a breach-unknown
// finding for the affected entries; only context cancellation aborts the
// scan, and a partial scan never corrupts anything because this is a pure
// read path.
func CheckBreaches(ctx context.Context, entries []*vault.Entry, lookup BreachLookup, now time.Time) ([]Finding, error) {
	byPassword := map[string][]*vault.Entry{}
	for _, e := range entries {
		byPassword[e.Password] = append(byPassword[e.Password], e)
	}

	var out []Finding
	for password, group := range byPassword {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		count, err := lookup.CheckPassword(ctx, password)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			for _, e := range group {
				out = append(out, Finding{
					EntryID:    e.ID,
					Title:      e.Title,
					Kind:       KindBreachUnknown,
					Severity:   SeverityInfo,
					Detail:     "breach lookup failed: " + err.Error(),
					ComputedAt: now,
				})
			}
			continue
		}
		if count == 0 {
			continue
		}
		for _, e := range group {
			out = append(out, Finding{
				EntryID:    e.ID,
				Title:      e.Title,
				Kind:       KindBreached,
				Severity:   SeverityCritical,
				Detail:     "seen in " + strconv.Itoa(count) + " known breaches",
				ComputedAt: now,
			})
		}
	}
	return out, nil
}
