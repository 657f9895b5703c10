// Package client queries the French public company registry
// (recherche-entreprises.api.gouv.fr).
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"raccordement_backend/internal/company/transport"
	"raccordement_backend/platform/logger"

	"github.com/tidwall/gjson"
)

const maxBodySize = 1 << 20

var legalForms = map[string]string{
	"1000": "Entrepreneur individuel",
	"5410": "SARL nationale",
	"5498": "EURL",
	"5499": "SARL",
	"5710": "SAS",
	"5720": "SASU",
	"5599": "SA à conseil d'administration",
	"6540": "SCI",
	"6599": "Société civile",
	"7210": "Commune",
	"9220": "Association déclarée",
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
	}
}

// Lookup searches by SIREN or SIRET. It returns nil when nothing matches.
func (c *Client) Lookup(ctx context.Context, identifier string) (*transport.Company, error) {
	params := url.Values{}
	params.Set("q", identifier)
	params.Set("page", "1")
	params.Set("per_page", "1")
	reqURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("company registry request failed", "error", err)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests:
		c.log.Warn("company registry rate limited")
		return nil, fmt.Errorf("upstream rate limited")
	default:
		c.log.Error("company registry upstream error", "status", resp.StatusCode)
		return nil, fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode response: invalid json")
	}
	return parse(body, identifier), nil
}

// parse picks the first result whose SIREN matches. For a SIRET the matching
// establishment provides the address, otherwise the head office does.
func parse(body []byte, identifier string) *transport.Company {
	siren := identifier
	if len(identifier) == 14 {
		siren = identifier[:9]
	}

	var found gjson.Result
	gjson.GetBytes(body, "results").ForEach(func(_, r gjson.Result) bool {
		if r.Get("siren").String() == siren {
			found = r
			return false
		}
		return true
	})
	if !found.Exists() {
		return nil
	}

	code := found.Get("nature_juridique").String()
	company := &transport.Company{
		SIREN:         siren,
		Name:          firstNonEmpty(found.Get("nom_raison_sociale").String(), found.Get("nom_complet").String()),
		LegalFormCode: code,
		LegalForm:     legalForms[code],
		NAFCode:       found.Get("activite_principale").String(),
		Active:        found.Get("etat_administratif").String() == "A",
	}

	establishment := found.Get("siege")
	if len(identifier) == 14 {
		found.Get("matching_etablissements").ForEach(func(_, e gjson.Result) bool {
			if e.Get("siret").String() == identifier {
				establishment = e
				return false
			}
			return true
		})
		if establishment.Get("siret").String() != identifier {
			return nil
		}
		company.Active = company.Active && establishment.Get("etat_administratif").String() == "A"
	}

	company.SIRET = establishment.Get("siret").String()
	company.PostalCode = establishment.Get("code_postal").String()
	company.City = establishment.Get("libelle_commune").String()
	company.Address = streetOf(establishment)
	return company
}

// streetOf rebuilds the street line, since "adresse" also carries postal code
// and city.
func streetOf(e gjson.Result) string {
	parts := []string{
		e.Get("numero_voie").String(),
		e.Get("indice_repetition").String(),
		e.Get("type_voie").String(),
		e.Get("libelle_voie").String(),
	}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return strings.TrimSpace(e.Get("adresse").String())
	}
	return strings.Join(out, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
