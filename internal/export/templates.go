package export

import (
	"bytes"
	"html/template"
)

type templateData struct {
	Title      string
	Paragraphs []string
}

var documentTemplate = template.Must(template.New("document").Parse(documentHTML))

// renderHTML wraps the laid-out paragraphs in a printable page. Paragraph
// text is escaped by the template; inner newlines survive via white-space.
func renderHTML(title string, paragraphs []string) (string, error) {
	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, templateData{Title: title, Paragraphs: paragraphs})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: "Times New Roman", serif; font-size: 12pt; line-height: 1.5; max-width: 700px; margin: 2rem auto; }
    p { white-space: pre-wrap; margin: 0 0 1em 0; }
  </style>
</head>
<body>
{{range .Paragraphs}}  <p>{{.}}</p>
{{end}}</body>
</html>
`
