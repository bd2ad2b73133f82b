// Package views renders console data for the terminal: tables for people,
// JSON and YAML for scripts.
package views

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

// Format selects how a Renderer writes values.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a --output flag value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Renderer writes views to w in one format.
type Renderer struct {
	w      io.Writer
	format Format
	color  bool
}

// New returns a Renderer. color enables ANSI colours in table output.
func New(w io.Writer, format Format, color bool) *Renderer {
	if format == "" {
		format = FormatTable
	}

	return &Renderer{w: w, format: format, color: color}
}

// Format reports the output format.
func (r *Renderer) Format() Format {
	return r.format
}

// structured writes v as JSON or YAML. It reports false for table output
// so the caller renders the table instead.
func (r *Renderer) structured(v any) (bool, error) {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")

		return true, enc.Encode(v)
	case FormatYAML:
		data, err := toYAML(v)
		if err != nil {
			return true, err
		}

		_, err = r.w.Write(data)

		return true, err
	default:
		return false, nil
	}
}

// toYAML goes through JSON so YAML keys match the backend's field names
// and keep their declared order.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}

	blockStyle(&node)

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}

	return buf.Bytes(), nil
}

// blockStyle drops the flow style the JSON source left on every node.
// The encoder still quotes strings that would read back as another type.
func blockStyle(n *yaml.Node) {
	n.Style = 0

	for _, c := range n.Content {
		blockStyle(c)
	}
}

func (r *Renderer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleRounded)

	return t
}

func (r *Renderer) paint(c text.Color, s string) string {
	if !r.color {
		return s
	}

	return c.Sprint(s)
}

func (r *Renderer) header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = r.paint(text.FgHiCyan, c)
	}

	return row
}

// keyValues renders a two column KEY/VALUE table.
func (r *Renderer) keyValues(rows [][2]string) {
	t := r.newTable()
	t.AppendHeader(r.header("KEY", "VALUE"))

	for _, kv := range rows {
		t.AppendRow(table.Row{r.paint(text.FgHiCyan, kv[0]), kv[1]})
	}

	t.Render()
}

func (r *Renderer) empty(message string) error {
	_, err := fmt.Fprintln(r.w, r.paint(text.FgYellow, message))
	return err
}

func (r *Renderer) yesNo(b bool) string {
	if b {
		return r.paint(text.FgGreen, "yes")
	}

	return r.paint(text.FgRed, "no")
}

func join(values []string) string {
	return strings.Join(values, ", ")
}

// Message prints a plain line in every format. JSON and YAML wrap it as
// {"message": ...}.
func (r *Renderer) Message(msg string) error {
	if ok, err := r.structured(map[string]string{"message": msg}); ok {
		return err
	}

	_, err := fmt.Fprintln(r.w, msg)

	return err
}

// Raw writes data unchanged, adding a final newline when missing.
func (r *Renderer) Raw(data []byte) error {
	if _, err := r.w.Write(data); err != nil {
		return err
	}

	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err := io.WriteString(r.w, "\n")
		return err
	}

	return nil
}

var bannerStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("196")).
	Padding(0, 1)

// Banner renders a container's error banner as a red box. Empty messages
// render nothing.
func Banner(msg string) string {
	if msg == "" {
		return ""
	}

	return bannerStyle.Render("Error: " + msg)
}
