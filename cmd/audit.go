package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/live-labs/passlock/internal/audit"
	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/vault"
)

// Audit runs the local security checks: strength, reuse, expiry, age.
// With breaches set it also queries the breach lookup service.
func Audit(breaches bool, timeout time.Duration) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	var entries []*vault.Entry
	if err := v.ForEachEntry(func(e *vault.Entry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		HandleError(err)
	}

	auditor := &audit.Auditor{Log: Logger()}
	if breaches {
		auditor.Breaches = audit.NewHIBPClient(timeout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := auditor.Run(ctx, entries, time.Now())
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Checked %d entries, health score %d/100\n", report.Checked, report.Score)
	if len(report.Findings) == 0 {
		fmt.Println("No findings")
		return
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tENTRY\tDETAIL")
	for _, f := range report.Findings {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Kind, f.Title, f.Detail)
	}
	w.Flush()
}

// Breach checks a single password against the breach lookup service without
// storing anything.
func Breach(timeout time.Duration) {
	raw, err := ReadPassword("Password to check: ")
	if err != nil {
		HandleError(err)
	}
	password := string(raw)
	crypto.ClearBytes(raw)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := audit.NewHIBPClient(timeout)
	count, err := client.CheckPassword(ctx, password)
	if err != nil {
		fmt.Printf("Breach status unknown: %s\n", err)
		os.Exit(2)
	}
	if count == 0 {
		fmt.Println("Not found in known breaches")
		return
	}
	fmt.Printf("Found in %d known breaches - change this password\n", count)
}
