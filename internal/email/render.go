package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"regexp"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var layout = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/base.html"))

type layoutData struct {
	Subject     string
	CompanyName string
	Body        htmltemplate.HTML
}

// Rendered is a template after variable substitution.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

var (
	actionPattern   = regexp.MustCompile(`\{\{[^}]*\}\}`)
	variablePattern = regexp.MustCompile(`(?:^|[\s(])\.([A-Za-z_][A-Za-z0-9_]*)`)
)

// Variables lists the {{.name}} references of a template, in order of first use.
func Variables(parts ...string) []string {
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, part := range parts {
		for _, action := range actionPattern.FindAllString(part, -1) {
			inner := strings.Trim(action, "{}-")
			for _, m := range variablePattern.FindAllStringSubmatch(" "+inner, -1) {
				if !seen[m[1]] {
					seen[m[1]] = true
					out = append(out, m[1])
				}
			}
		}
	}
	return out
}

// Render fills tpl with vars and wraps the body in the shared layout.
// Variables the caller did not supply render as empty strings.
func Render(tpl Template, companyName string, vars map[string]any) (Rendered, error) {
	data := make(map[string]any, len(vars))
	for _, name := range Variables(tpl.Subject, tpl.HTMLBody) {
		data[name] = ""
	}
	for k, v := range vars {
		data[k] = v
	}

	subjectTmpl, err := texttemplate.New("subject").Parse(tpl.Subject)
	if err != nil {
		return Rendered{}, fmt.Errorf("parse subject of %s: %w", tpl.Key, err)
	}
	var subject bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return Rendered{}, fmt.Errorf("render subject of %s: %w", tpl.Key, err)
	}

	bodyTmpl, err := htmltemplate.New("body").Parse(tpl.HTMLBody)
	if err != nil {
		return Rendered{}, fmt.Errorf("parse body of %s: %w", tpl.Key, err)
	}
	var body bytes.Buffer
	if err := bodyTmpl.Execute(&body, data); err != nil {
		return Rendered{}, fmt.Errorf("render body of %s: %w", tpl.Key, err)
	}

	var page bytes.Buffer
	err = layout.ExecuteTemplate(&page, "base.html", layoutData{
		Subject:     strings.TrimSpace(subject.String()),
		CompanyName: companyName,
		Body:        htmltemplate.HTML(body.String()),
	})
	if err != nil {
		return Rendered{}, fmt.Errorf("render layout of %s: %w", tpl.Key, err)
	}

	html := page.String()
	return Rendered{
		Subject: strings.TrimSpace(subject.String()),
		HTML:    html,
		Text:    PlainText(html),
	}, nil
}
