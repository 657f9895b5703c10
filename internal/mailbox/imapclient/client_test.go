package imapclient

import (
	"testing"
	"time"

	imap "github.com/BrianLeishman/go-imap"
)

func TestFolderLabel(t *testing.T) {
	cases := map[string]string{
		"INBOX":         "Boîte de réception",
		"[Gmail]/Sent":  "Envoyés",
		"INBOX.Drafts":  "Brouillons",
		"Junk":          "Indésirables",
		"Clients/Devis": "Devis",
		"Deleted Items": "Corbeille",
		"Archives":      "Archives",
	}
	for in, want := range cases {
		if got := FolderLabel(in); got != want {
			t.Errorf("FolderLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMessageFallsBackToHTMLText(t *testing.T) {
	e := &imap.Email{
		UID:      12,
		Subject:  "Devis",
		Flags:    []string{`\Seen`},
		Received: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		From:     imap.EmailAddresses{"client@example.fr": "Client"},
		HTML:     "<p>Bonjour <b>équipe</b></p>",
	}
	m := message(e)
	if !m.Seen || m.UID != 12 || m.Date.IsZero() {
		t.Fatalf("unexpected summary %+v", m.MessageSummary)
	}
	if m.Text == "" || m.From[0].Email != "client@example.fr" {
		t.Fatalf("unexpected message %+v", m)
	}
}
