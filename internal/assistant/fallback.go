package assistant

import (
	"strings"
)

var clientTypeLabels = map[string]string{
	"particulier":   "un particulier",
	"professionnel": "un professionnel",
}

var connectionTypeLabels = map[string]string{
	"nouveau_raccordement":    "un nouveau raccordement",
	"augmentation_puissance":  "une augmentation de puissance",
	"raccordement_provisoire": "un raccordement provisoire",
	"deplacement_compteur":    "un déplacement de compteur",
	"raccordement_collectif":  "un raccordement collectif",
}

// fallbackText is served when the model is not configured or fails.
func fallbackText(purpose string, facts map[string]string) string {
	switch purpose {
	case PurposeEmailReply:
		return fallbackEmailReply(facts)
	case PurposeLeadSummary:
		return fallbackLeadSummary(facts)
	case PurposeRequestNote:
		return fallbackRequestNote(facts)
	}
	return "La génération automatique n'est pas disponible pour le moment. Merci de rédiger ce texte manuellement."
}

func fallbackEmailReply(facts map[string]string) string {
	var b strings.Builder
	name := firstNonEmpty(facts["name"], strings.TrimSpace(facts["firstName"]+" "+facts["lastName"]))
	if name != "" {
		b.WriteString("Bonjour " + name + ",\n\n")
	} else {
		b.WriteString("Bonjour,\n\n")
	}
	if subject := facts["subject"]; subject != "" {
		b.WriteString("Nous vous remercions pour votre message concernant « " + subject + " ».")
	} else {
		b.WriteString("Nous vous remercions pour votre message.")
	}
	b.WriteString(" Un conseiller étudie votre demande et reviendra vers vous dans les meilleurs délais.")
	if ref := facts["reference"]; ref != "" {
		b.WriteString("\n\nVotre dossier porte la référence " + ref + ", à rappeler dans vos échanges.")
	}
	b.WriteString("\n\nCordialement,\nLe service client")
	return b.String()
}

func fallbackLeadSummary(facts map[string]string) string {
	var parts []string
	who := firstNonEmpty(facts["companyName"], strings.TrimSpace(facts["firstName"]+" "+facts["lastName"]), "Prospect")
	sentence := who
	if ct, ok := clientTypeLabels[facts["clientType"]]; ok {
		sentence += ", " + ct + ","
	}
	if need, ok := connectionTypeLabels[facts["connectionType"]]; ok {
		sentence += " demande " + need
	} else {
		sentence += " n'a pas encore précisé son besoin"
	}
	if city := facts["city"]; city != "" {
		sentence += " à " + city
		if pc := facts["postalCode"]; pc != "" {
			sentence += " (" + pc + ")"
		}
	}
	parts = append(parts, sentence+".")

	if kva := facts["powerKva"]; kva != "" {
		power := "Puissance souhaitée : " + kva + " kVA"
		if phase := facts["phase"]; phase != "" {
			power += " en " + phase
		}
		parts = append(parts, power+".")
	}
	if step := facts["currentStep"]; step != "" {
		parts = append(parts, "Parcours à l'étape "+step+" sur 5, statut "+firstNonEmpty(facts["status"], "inconnu")+".")
	}
	if date := facts["desiredDate"]; date != "" {
		parts = append(parts, "Date souhaitée : "+date+".")
	}
	if comments := facts["comments"]; comments != "" {
		parts = append(parts, "Commentaire : "+comments)
	}
	return strings.Join(parts, " ")
}

func fallbackRequestNote(facts map[string]string) string {
	lines := []string{"Note sur le dossier " + firstNonEmpty(facts["reference"], "sans référence") + "."}
	if status := facts["status"]; status != "" {
		lines = append(lines, "Statut actuel : "+status+".")
	}
	if need, ok := connectionTypeLabels[facts["connectionType"]]; ok {
		lines = append(lines, "Objet : "+need+".")
	}
	if notes := facts["notes"]; notes != "" {
		lines = append(lines, notes)
	}
	lines = append(lines, "À compléter par le conseiller.")
	return strings.Join(lines, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
