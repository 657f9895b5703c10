package assistant

import (
	"sort"
	"strings"
)

const (
	PurposeEmailReply   = "email_reply"
	PurposeLeadSummary  = "lead_summary"
	PurposeRequestNote  = "request_note"
	PurposeFree         = "free"
	maxContextValueSize = 4000
)

// Instruction is the system instruction of the assistant agent.
const Instruction = `Tu es l'assistant du service client d'une entreprise qui accompagne les particuliers et les professionnels dans leurs démarches de raccordement électrique auprès d'Enedis.
Tu écris en français, avec un ton professionnel et chaleureux, sans jargon inutile.
N'invente jamais de montant, de délai ou de référence qui ne figure pas dans le contexte.
Réponds uniquement avec le texte demandé, sans préambule ni commentaire.`

var purposeInstructions = map[string]string{
	PurposeEmailReply:  "Rédige une réponse par e-mail au message du client ci-dessous. Commence par une formule de politesse et signe « Le service client ».",
	PurposeLeadSummary: "Résume ce prospect pour un conseiller en trois à cinq phrases : besoin, avancement dans le parcours, points à vérifier.",
	PurposeRequestNote: "Rédige une note interne courte sur ce dossier de raccordement, destinée à l'équipe qui le suit.",
	PurposeFree:        "Réponds à la demande du conseiller.",
}

var factLabels = map[string]string{
	"name":           "Nom",
	"firstName":      "Prénom",
	"lastName":       "Nom",
	"companyName":    "Société",
	"email":          "E-mail",
	"subject":        "Objet",
	"message":        "Message",
	"reference":      "Référence",
	"status":         "Statut",
	"currentStep":    "Étape du parcours",
	"source":         "Origine",
	"clientType":     "Type de client",
	"connectionType": "Type de raccordement",
	"city":           "Ville",
	"postalCode":     "Code postal",
	"powerKva":       "Puissance (kVA)",
	"phase":          "Phase",
	"desiredDate":    "Date souhaitée",
	"comments":       "Commentaires du client",
	"notes":          "Notes internes",
	"amount":         "Montant",
}

// buildPrompt lays the context out as labelled lines in a stable order.
func buildPrompt(purpose string, facts map[string]string, instructions string) string {
	var b strings.Builder
	b.WriteString(purposeInstructions[purpose])
	b.WriteString("\n\n")
	if lines := factLines(facts); len(lines) > 0 {
		b.WriteString("Contexte :\n")
		for _, line := range lines {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if instructions = strings.TrimSpace(instructions); instructions != "" {
		b.WriteString("\nConsignes du conseiller : ")
		b.WriteString(instructions)
		b.WriteByte('\n')
	}
	return b.String()
}

func factLines(facts map[string]string) []string {
	keys := make([]string, 0, len(facts))
	for k, v := range facts {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		label, ok := factLabels[k]
		if !ok {
			label = k
		}
		v := strings.TrimSpace(facts[k])
		if len(v) > maxContextValueSize {
			v = v[:maxContextValueSize]
		}
		lines = append(lines, label+" : "+v)
	}
	return lines
}
