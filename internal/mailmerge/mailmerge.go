// Package mailmerge renders donor notification messages from the donor
// view report. Substitution happens only inside the template's body so
// markup in the head survives untouched. Sending is someone else's job;
// rendering stops at message parts.
package mailmerge

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed template.html
var defaultTemplate string

// Message is one rendered notification with both alternatives.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Renderer fills the template from donor view rows.
type Renderer struct {
	template string
	subject  string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTemplate replaces the embedded default template.
func WithTemplate(t string) Option {
	return func(r *Renderer) { r.template = t }
}

// WithSubject overrides the message subject.
func WithSubject(s string) Option {
	return func(r *Renderer) { r.subject = s }
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{template: defaultTemplate, subject: "Your gift card donations"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the message for one donor view row, keyed by the
// view's column headers.
func (r *Renderer) Render(row map[string]string) (Message, error) {
	data := make(map[string]string, len(row)+2)
	for k, v := range row {
		data[k] = v
	}
	data["GreetingLine"] = "Dear " + row["First"] + ","
	data["RecipientRows"] = recipientRows(row)

	html, err := substituteBody(r.template, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      row["Email"],
		Subject: r.subject,
		HTML:    html,
		Text:    plainText(html),
	}, nil
}

// recipientRows turns the denormalized recipient cells into table rows.
// Each cell reads "name, address email phone store"; the email is found
// by walking out from the @ sign.
func recipientRows(row map[string]string) string {
	var b strings.Builder
	for i := 1; ; i++ {
		cell, ok := row["Recipient "+strconv.Itoa(i)]
		if !ok {
			break
		}
		if cell == "" {
			continue
		}
		name, email, card := splitRecipientCell(cell)
		fmt.Fprintf(&b, "<tr>\n<td>%s</td><td>%s</td><td>%s</td>\n</tr>\n", name, email, card)
	}
	return b.String()
}

func splitRecipientCell(cell string) (name, email, card string) {
	at := strings.Index(cell, "@")
	if at < 0 {
		return strings.TrimSpace(cell), "", ""
	}
	start := at
	for start > 0 && cell[start] != ' ' {
		start--
	}
	end := strings.Index(cell[start+1:], " ")
	if end < 0 {
		end = len(cell)
	} else {
		end += start + 1
	}
	name = strings.TrimSpace(cell[:start])
	email = strings.TrimSpace(cell[start:end])
	card = strings.TrimSpace(cell[end:])
	return name, email, card
}

// substituteBody replaces {key} placeholders, starting after the <body>
// tag opens.
func substituteBody(template string, data map[string]string) (string, error) {
	bodyStart := strings.Index(template, "<body")
	if bodyStart < 0 {
		return "", fmt.Errorf("template has no <body> element")
	}
	pos := bodyStart + len("<body")
	var b strings.Builder
	b.WriteString(template[:pos])
	for {
		open := strings.Index(template[pos:], "{")
		if open < 0 {
			b.WriteString(template[pos:])
			return b.String(), nil
		}
		open += pos
		close := strings.Index(template[open:], "}")
		if close < 0 {
			return "", fmt.Errorf("unterminated placeholder at offset %d", open)
		}
		close += open
		key := strings.TrimSpace(template[open+1 : close])
		value, ok := data[key]
		if !ok {
			return "", fmt.Errorf("template references unknown key %q", key)
		}
		b.WriteString(template[pos:open])
		b.WriteString(value)
		pos = close + 1
	}
}

// plainText derives the text alternative by flattening the HTML body:
// paragraphs and table rows become lines, cells become spaced columns,
// all other markup drops away.
func plainText(html string) string {
	bodyStart := strings.Index(html, "<body")
	if bodyStart >= 0 {
		if open := strings.Index(html[bodyStart:], ">"); open >= 0 {
			html = html[bodyStart+open+1:]
		}
	}
	if bodyEnd := strings.Index(html, "</body>"); bodyEnd >= 0 {
		html = html[:bodyEnd]
	}
	var b strings.Builder
	for pos := 0; pos < len(html); {
		open := strings.Index(html[pos:], "<")
		if open < 0 {
			b.WriteString(html[pos:])
			break
		}
		open += pos
		b.WriteString(html[pos:open])
		close := strings.Index(html[open:], ">")
		if close < 0 {
			break
		}
		tag := strings.ToLower(strings.TrimSpace(strings.Trim(html[open+1:open+close], "/")))
		if i := strings.IndexAny(tag, " \t\n"); i >= 0 {
			tag = tag[:i]
		}
		switch tag {
		case "p", "tr", "br", "li", "table":
			b.WriteString("\n")
		case "td", "th":
			b.WriteString(" ")
		}
		pos = open + close + 1
	}
	lines := strings.Split(b.String(), "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n")) + "\n"
}
