package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// Row is one labelled value in an email table. Href turns the value into a link.
type Row struct {
	Label string
	Value string
	Href  string
}

// Section is a titled block holding either rows or free text.
type Section struct {
	Title string
	Rows  []Row
	Text  string
}

// Email is the body of a notification before layout.
type Email struct {
	Heading  string
	Intro    string
	Sections []Section
	Notice   string
}

const layoutHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="background-color:#f5f5f5;font-family:Arial,sans-serif;margin:0;padding:0">
<div style="max-width:600px;margin:0 auto;background-color:#ffffff">
  <div style="background-color:#0a0a0a;padding:30px 20px;text-align:center">
    <h1 style="color:#fff;margin:0;font-size:28px;font-weight:bold">CR EXPRESS</h1>
    <p style="color:#a3a3a3;margin:8px 0 0;font-size:14px">Bonded Warehouse &amp; Transportation Services</p>
  </div>
  <div style="padding:40px 30px">
    <h2 style="color:#0a0a0a;margin-top:0;font-size:24px">{{.Heading}}</h2>
    {{- if .Intro}}
    <p style="color:#737373;font-size:14px;margin-bottom:30px">{{.Intro}}</p>
    {{- end}}
    {{- range .Sections}}
    <div style="margin-bottom:20px">
      <h3 style="color:#0a0a0a;font-size:18px;border-bottom:2px solid #e5e5e5;padding-bottom:10px">{{.Title}}</h3>
      {{- if .Rows}}
      <table style="width:100%;border-collapse:collapse">
        {{- range .Rows}}
        <tr>
          <td style="padding:8px 0;color:#737373;width:40%">{{.Label}}:</td>
          <td style="padding:8px 0">{{if .Href}}<a href="{{.Href}}" style="color:#0a0a0a">{{.Value}}</a>{{else}}{{.Value}}{{end}}</td>
        </tr>
        {{- end}}
      </table>
      {{- end}}
      {{- if .Text}}
      <p style="white-space:pre-wrap">{{.Text}}</p>
      {{- end}}
    </div>
    {{- end}}
    {{- if .Notice}}
    <div style="padding:15px;background-color:#fff3cd;border-left:4px solid #ffc107;margin-top:30px">
      <p style="margin:0;font-size:14px;color:#856404"><strong>Action Required:</strong> {{.Notice}}</p>
    </div>
    {{- end}}
  </div>
  <div style="background-color:#f5f5f5;padding:20px 30px;text-align:center;font-size:12px;color:#737373">
    <p style="margin:0 0 10px">CR EXPRESS, Inc.</p>
    <p style="margin:0 0 10px">2400 Arthur Ave, Elk Grove Village, IL 60007</p>
    <p style="margin:0 0 10px">Sales: +1 (224) 402-9537 | Operations: +1 (847) 354-7979</p>
    <p style="margin:10px 0 0">This email was generated from a submission on crexpressinc.com</p>
  </div>
</div>
</body>
</html>`

var layout = template.Must(template.New("layout").Parse(layoutHTML))

// Render lays out an email as HTML. Values are escaped by html/template.
func Render(e Email) (string, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, e); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

// Rows builds rows from label/value pairs, skipping empty values.
func Rows(pairs ...string) []Row {
	rows := make([]Row, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		rows = append(rows, Row{Label: pairs[i], Value: pairs[i+1]})
	}
	return rows
}
