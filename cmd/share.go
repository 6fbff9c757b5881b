package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/live-labs/passlock/internal/share"
	"github.com/live-labs/passlock/internal/vault"
)

func shareService(v *vault.Vault) *share.Service {
	return share.NewService(v.Store(), Logger())
}

// Share seals one entry for a recipient and prints the bundle and key.
// The two must be delivered over separate channels.
func Share(ref, recipient string, ttl time.Duration) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	entry, err := v.Read(ResolveEntry(v, ref))
	if err != nil {
		HandleError(err)
	}

	key, bundle, err := shareService(v).Share(entry.ID, share.Secret{
		Title:    entry.Title,
		Username: entry.Username,
		Password: entry.Password,
		URL:      entry.URL,
		Notes:    entry.Notes,
	}, recipient, ttl)
	if err != nil {
		HandleError(err)
	}

	wire, err := bundle.Encode()
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Bundle (send to %s):\n%s\n\n", recipient, base64.StdEncoding.EncodeToString(wire))
	fmt.Printf("Key (send separately):\n%s\n", base64.StdEncoding.EncodeToString(key))
	fmt.Printf("\nExpires %s. Revoke with 'passlock revoke'.\n",
		time.Now().Add(ttl).Format(time.RFC3339))
}

// Redeem decrypts a received share bundle with its key
func Redeem(bundleB64, keyB64 string) {
	wire, err := base64.StdEncoding.DecodeString(bundleB64)
	if err != nil {
		HandleError(fmt.Errorf("invalid bundle encoding: %w", err))
	}
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		HandleError(fmt.Errorf("invalid key encoding: %w", err))
	}
	bundle, err := share.DecodeBundle(wire)
	if err != nil {
		HandleError(err)
	}

	// Redeeming needs no vault: the bundle is self-contained. When a local
	// vault exists, it is consulted so revocation is honored.
	v := OpenVault()
	defer v.Close()

	secret, err := shareService(v).Redeem(bundle, key)
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Title:    %s\n", secret.Title)
	fmt.Printf("Username: %s\n", secret.Username)
	fmt.Printf("Password: %s\n", secret.Password)
	if secret.URL != "" {
		fmt.Printf("URL:      %s\n", secret.URL)
	}
	if secret.Notes != "" {
		fmt.Printf("Notes:    %s\n", secret.Notes)
	}
}

// Revoke flags a share so it can no longer be redeemed here
func Revoke(shareID string) {
	v := OpenVault()
	defer v.Close()

	if err := shareService(v).Revoke(shareID); err != nil {
		HandleError(err)
	}
	fmt.Printf("Share %s revoked\n", shareID)
	fmt.Println("Note: plaintext already redeemed by the recipient cannot be recalled.")
}

// Shares lists recorded shares
func Shares() {
	v := OpenVault()
	defer v.Close()

	recs, err := shareService(v).List()
	if err != nil {
		HandleError(err)
	}
	if len(recs) == 0 {
		fmt.Println("No shares")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENTRY\tRECIPIENT\tEXPIRES\tREVOKED")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
			rec.ID, rec.EntryID, rec.Recipient, rec.ExpiresAt.Format(time.RFC3339), rec.Revoked)
	}
	w.Flush()
}
