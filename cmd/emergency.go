package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// EmergencyAdd registers a trusted contact and prints their recovery key
func EmergencyAdd(name string, wait time.Duration) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	key, contact, err := v.AddEmergencyContact(name, wait)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Added emergency contact %s (%s)\n", contact.Name, contact.ID)
	fmt.Printf("Waiting period: %s\n\n", contact.WaitingPeriod)
	fmt.Printf("Recovery key (give to the contact, shown only once):\n%s\n",
		base64.StdEncoding.EncodeToString(key))
	fmt.Println("\nThe contact can run 'passlock emergency request' and, after the")
	fmt.Println("waiting period, 'passlock emergency access' with this key.")
}

// EmergencyRemove deletes a contact and their escrowed key
func EmergencyRemove(contactID string) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	if err := v.RemoveEmergencyContact(contactID); err != nil {
		HandleError(err)
	}
	fmt.Printf("Removed emergency contact %s\n", contactID)
}

// EmergencyList shows contacts and requests without requiring a password
func EmergencyList() {
	v := OpenVault()
	defer v.Close()

	contacts, err := v.ListEmergencyContacts()
	if err != nil {
		HandleError(err)
	}
	if len(contacts) == 0 {
		fmt.Println("No emergency contacts")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tWAIT\tADDED")
		for _, c := range contacts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				c.ID, c.Name, c.WaitingPeriod, c.CreatedAt.Format("2006-01-02"))
		}
		w.Flush()
	}

	reqs, err := v.ListEmergencyRequests()
	if err != nil {
		HandleError(err)
	}
	if len(reqs) == 0 {
		return
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REQUEST\tCONTACT\tSTATUS\tREQUESTED")
	for _, r := range reqs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.ID, r.ContactID, r.Status, r.RequestedAt.Format(time.RFC3339))
	}
	w.Flush()
}

// EmergencyRequest files an access request for a contact
func EmergencyRequest(contactID string) {
	v := OpenVault()
	defer v.Close()

	req, err := v.RequestEmergencyAccess(contactID)
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Request %s filed at %s\n", req.ID, req.RequestedAt.Format(time.RFC3339))
	fmt.Println("Access opens after the contact's waiting period unless the owner denies it.")
}

// EmergencyApprove grants a pending request immediately
func EmergencyApprove(requestID string) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	if err := v.ApproveEmergencyRequest(requestID); err != nil {
		HandleError(err)
	}
	fmt.Printf("Request %s approved; access is open now\n", requestID)
}

// EmergencyDeny cancels a pending request
func EmergencyDeny(requestID string) {
	v := OpenVault()
	defer v.Close()
	Unlock(v)

	if err := v.DenyEmergencyRequest(requestID); err != nil {
		HandleError(err)
	}
	fmt.Printf("Request %s denied\n", requestID)
	fmt.Println("Remove the contact with 'passlock emergency rm' to cut access off for good.")
}

// EmergencyAccess opens the vault with a contact's recovery key and dumps
// the entries. This is the break-glass path; everything prints in plaintext.
func EmergencyAccess(contactID, keyB64 string) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		HandleError(fmt.Errorf("invalid recovery key encoding: %w", err))
	}

	v := OpenVault()
	defer v.Close()

	if err := v.EmergencyUnlock(contactID, key); err != nil {
		HandleError(err)
	}

	entries := collectEntries(v)
	fmt.Printf("Emergency access granted: %d entries\n\n", len(entries))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tUSERNAME\tPASSWORD\tURL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Title, e.Username, e.Password, e.URL)
	}
	w.Flush()
}
