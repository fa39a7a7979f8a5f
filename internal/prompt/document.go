// Package prompt turns a payload into a four-section prompt document:
// role, context, instructions, output contract.
package prompt

import (
	"strings"
)

// Pair is one key/value line of a context block.
type Pair struct {
	Key   string
	Value string
}

// Table is a tabular context block.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Block is one titled context block holding pairs, a table, or both.
type Block struct {
	Title string
	Pairs []Pair
	Table *Table
}

// Document is a rendered-ready prompt.
type Document struct {
	Task         string
	Role         string
	Context      []Block
	Instructions []string
	Constraints  []string
	// Contract is the output-format section including the JSON Schema.
	Contract string
}

// Section headings, in render order.
const (
	headingRole         = "ROLE"
	headingContext      = "CONTEXT"
	headingInstructions = "INSTRUCTIONS"
	headingContract     = "OUTPUT FORMAT"
)

// Render returns the whole document as one text, for the manual path.
func (d Document) Render() string {
	var b strings.Builder
	writeSection(&b, headingRole, d.Role)
	if u := d.User(); u != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(u)
	}
	return b.String()
}

// System returns the system text for the automated path.
func (d Document) System() string {
	return strings.TrimSpace(d.Role)
}

// User returns the context, instructions and contract sections.
func (d Document) User() string {
	var b strings.Builder
	writeSection(&b, headingContext, renderBlocks(d.Context))
	writeSection(&b, headingInstructions, renderList(d.Instructions, d.Constraints))
	writeSection(&b, headingContract, d.Contract)
	return b.String()
}

func writeSection(b *strings.Builder, heading, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString("## ")
	b.WriteString(heading)
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n")
}

func renderBlocks(blocks []Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		if len(blk.Pairs) == 0 && (blk.Table == nil || len(blk.Table.Rows) == 0) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("### ")
		b.WriteString(blk.Title)
		b.WriteString("\n")
		for _, p := range blk.Pairs {
			b.WriteString(p.Key)
			b.WriteString(": ")
			b.WriteString(p.Value)
			b.WriteString("\n")
		}
		if blk.Table != nil && len(blk.Table.Rows) > 0 {
			if len(blk.Pairs) > 0 {
				b.WriteString("\n")
			}
			renderTable(&b, blk.Table)
		}
	}
	return b.String()
}

func renderTable(b *strings.Builder, t *Table) {
	b.WriteString("| ")
	b.WriteString(strings.Join(t.Columns, " | "))
	b.WriteString(" |\n|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = cell(row[i])
			}
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
}

// cell keeps a table row on one line.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	return strings.Join(strings.Fields(s), " ")
}

func renderList(groups ...[]string) string {
	var b strings.Builder
	n := 0
	for _, g := range groups {
		for _, item := range g {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			n++
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	if n == 0 {
		return ""
	}
	return b.String()
}
