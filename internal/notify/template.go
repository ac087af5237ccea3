package notify

import (
	"bytes"
	"html/template"
	"strings"
)

var emailLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="margin:0;padding:0;background:#f3f6f2;font-family:Helvetica,Arial,sans-serif;color:#1f2d1c;">
{{if .PreviewText}}<div style="display:none;max-height:0;overflow:hidden;">{{.PreviewText}}</div>{{end}}
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:32px 16px;">
<table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px;">
<tr><td><h1 style="font-size:22px;margin:0 0 16px;color:#2e6b30;">{{.Heading}}</h1></td></tr>
{{range .BodyLines}}<tr><td><p style="font-size:15px;line-height:22px;margin:0 0 12px;">{{.}}</p></td></tr>
{{end}}{{if .CTA}}<tr><td style="padding-top:12px;"><a href="{{.CTA.URL}}" style="display:inline-block;background:#2e6b30;color:#ffffff;text-decoration:none;padding:12px 20px;border-radius:6px;">{{.CTA.Label}}</a></td></tr>
{{end}}</table>
<p style="font-size:12px;color:#6b7a68;margin-top:16px;">You are receiving this because you have a Canopy account.</p>
</td></tr>
</table>
</body>
</html>
`))

// RenderHTML renders msg into the shared email layout.
func RenderHTML(msg Message) (string, error) {
	var buf bytes.Buffer
	if err := emailLayout.Execute(&buf, msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderText renders the plain-text alternative of msg.
func RenderText(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Heading)
	b.WriteString("\n\n")
	for _, line := range msg.BodyLines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if msg.CTA != nil {
		b.WriteString("\n")
		b.WriteString(msg.CTA.Label)
		b.WriteString(": ")
		b.WriteString(msg.CTA.URL)
		b.WriteString("\n")
	}
	return b.String()
}
