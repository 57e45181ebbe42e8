// Package schema builds the textual data dictionary handed to the language
// model. A Dictionary is loaded once at startup and shared read-only across
// sessions; callers that need a fresh view call Loader.Load again and swap
// the pointer themselves.
package schema

import (
	"fmt"
	"strings"
)

type Column struct {
	Name         string
	DataType     string
	Nullable     bool
	Comment      string
	IsPrimaryKey bool
}

type Table struct {
	Name    string
	Columns []Column
}

type Schema struct {
	Name   string
	Tables []Table
}

type Dictionary struct {
	DatabaseName string
	Schemas      []Schema
}

// ContextProvider is what the workflow engine consumes: a deterministic
// textual rendering of the reachable tables and columns.
type ContextProvider interface {
	FormatContext() string
}

func (c Column) String() string {
	s := fmt.Sprintf("%s (%s), NULLABLE (%t)", c.Name, strings.ToUpper(c.DataType), c.Nullable)
	if c.IsPrimaryKey {
		s += ", PRIMARY KEY"
	}
	if c.Comment != "" {
		s += fmt.Sprintf(", DESCRIPTION (%s)", c.Comment)
	}
	return s
}

func (t Table) formatContext(b *strings.Builder, indent string) {
	fmt.Fprintf(b, "%s<TABLE (%s) COLUMNS:>\n", indent, t.Name)
	for _, column := range t.Columns {
		fmt.Fprintf(b, "%s    -  %s\n", indent, column)
	}
	fmt.Fprintf(b, "%s</TABLE (%s) COLUMNS:>\n", indent, t.Name)
}

func (s Schema) formatContext(b *strings.Builder, indent string) {
	fmt.Fprintf(b, "%s<SCHEMA: %s>\n", indent, s.Name)
	for _, table := range s.Tables {
		table.formatContext(b, indent+"    ")
	}
	fmt.Fprintf(b, "%s</SCHEMA: %s>\n", indent, s.Name)
}

func (d *Dictionary) FormatContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<DATABASE: %s>\n", d.DatabaseName)
	for _, s := range d.Schemas {
		s.formatContext(&b, "    ")
	}
	fmt.Fprintf(&b, "</DATABASE: %s>\n", d.DatabaseName)
	return b.String()
}
