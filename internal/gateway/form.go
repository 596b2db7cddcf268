package gateway

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sort"
)

// Form is a browser form that posts Fields to Action.
type Form struct {
	Action string
	Fields Fields
}

type formField struct {
	Name  string
	Value string
}

var autoSubmit = template.Must(template.New("autosubmit").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting to payment</title></head>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.Action}}">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`))

// Render writes an HTML page that submits the form as soon as it loads.
// Field order is sorted so the output is stable.
func (f Form) Render(w io.Writer) error {
	names := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]formField, 0, len(names))
	for _, name := range names {
		fields = append(fields, formField{Name: name, Value: f.Fields[name]})
	}

	var buf bytes.Buffer
	err := autoSubmit.Execute(&buf, struct {
		Action string
		Fields []formField
	}{Action: f.Action, Fields: fields})
	if err != nil {
		return fmt.Errorf("gateway: render form: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}
