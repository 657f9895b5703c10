package service

import (
	"strconv"
	"time"

	"raccordement_backend/internal/mailbox/transport"
)

// The demo mailbox is fixed so the back office looks the same on every
// environment without IMAP credentials.
var simulatedFolders = []transport.Folder{
	{Name: "INBOX", Label: "Boîte de réception"},
	{Name: "Sent", Label: "Envoyés"},
	{Name: "Archive", Label: "Archives"},
}

func simulatedMessages(folder string) []transport.Message {
	base := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)
	contact := transport.Address{Name: "Service client", Email: "contact@raccordement.example"}

	switch folder {
	case "INBOX":
		return []transport.Message{
			simulated(3, "Question sur mon devis de raccordement", transport.Address{Name: "Julie Bernard", Email: "julie.bernard@example.fr"}, contact, base.Add(50*time.Hour), false,
				"Bonjour,\n\nJ'ai reçu votre devis pour un raccordement provisoire. Est-il possible d'avancer l'intervention d'une semaine ?\n\nMerci,\nJulie Bernard"),
			simulated(2, "Dossier RAC-2026-0042 : pièces justificatives", transport.Address{Name: "Marc Petit", Email: "marc.petit@example.fr"}, contact, base.Add(26*time.Hour), true,
				"Bonjour,\n\nVous trouverez ci-joint le plan de masse demandé pour mon dossier.\n\nCordialement,\nMarc Petit"),
			simulated(1, "Augmentation de puissance 12 kVA", transport.Address{Name: "SARL Atelier Roux", Email: "gestion@atelier-roux.example"}, contact, base, true,
				"Bonjour,\n\nNous souhaitons passer notre atelier de 9 à 12 kVA en triphasé. Quels sont les délais ?\n\nBien à vous."),
		}
	case "Sent":
		return []transport.Message{
			simulated(1, "Re: Augmentation de puissance 12 kVA", contact, transport.Address{Name: "SARL Atelier Roux", Email: "gestion@atelier-roux.example"}, base.Add(3*time.Hour), true,
				"Bonjour,\n\nLe délai moyen constaté est de six à huit semaines après réception du dossier complet.\n\nLe service client"),
		}
	case "Archive":
		return []transport.Message{}
	}
	return nil
}

func simulated(uid int, subject string, from, to transport.Address, date time.Time, seen bool, body string) transport.Message {
	return transport.Message{
		MessageSummary: transport.MessageSummary{
			UID:     uid,
			Subject: subject,
			From:    []transport.Address{from},
			To:      []transport.Address{to},
			Date:    date,
			Seen:    seen,
			Size:    uint64(len(body)),
		},
		MessageID: "<demo-" + strconv.Itoa(uid) + "@raccordement.example>",
		Text:      body,
	}
}
