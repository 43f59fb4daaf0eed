// Package textdoc builds and parses the fixed text template wrapping every
// extracted document. Downstream stages locate the header, body, and footer
// by exact substring search, so the literal markers here must never change.
package textdoc

import (
	"fmt"
	"strings"

	"github.com/rmreedy/docpipe/internal/chunk"
)

const (
	beginMarker = "BEGINNING OF PROCESSED DOCUMENT"
	endMarker   = "END OF PROCESSED DOCUMENT"

	// FirstPageMarker must survive every downstream transformation.
	FirstPageMarker = "[BEGIN PDF Page 1]"

	FieldNumber    = "DOCUMENT NUMBER"
	FieldName      = "DOCUMENT NAME"
	FieldOriginal  = "ORIGINAL PDF NAME"
	FieldDirectory = "PDF DIRECTORY"
	FieldLink      = "PDF PUBLIC LINK"
	FieldPages     = "TOTAL PAGES"
)

var separator = strings.Repeat("=", 69)

// Meta holds the header fields for a document under construction.
type Meta struct {
	Name        string
	OriginalPDF string
	Directory   string
	PublicLink  string
	TotalPages  int
}

// Build wraps the extracted pages in the document template. The first page
// marker opens the body directly; every later marker is preceded by a blank
// line.
func Build(meta Meta, pages []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "§§ DOCUMENT INFORMATION §§\n\n")
	fmt.Fprintf(&b, "%s: TBD\n", FieldNumber)
	fmt.Fprintf(&b, "%s: %s\n", FieldName, meta.Name)
	fmt.Fprintf(&b, "%s: %s\n", FieldOriginal, meta.OriginalPDF)
	fmt.Fprintf(&b, "%s: %s\n", FieldDirectory, meta.Directory)
	fmt.Fprintf(&b, "%s: %s\n", FieldLink, meta.PublicLink)
	fmt.Fprintf(&b, "%s: %d\n\n", FieldPages, meta.TotalPages)
	fmt.Fprintf(&b, "%s\n%s\n%s\n\n", separator, beginMarker, separator)

	for i, page := range pages {
		if i > 0 {
			fmt.Fprintf(&b, "\n[BEGIN PDF Page %d]\n\n%s\n", i+1, page)
		} else {
			fmt.Fprintf(&b, "[BEGIN PDF Page %d]\n\n%s\n", i+1, page)
		}
	}

	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", separator, endMarker, separator)
	return b.String()
}

// ParseError reports that the template markers were not found, which means
// the artifact was hand-edited or produced outside the pipeline.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "template parse: " + e.Reason
}

// Document is a parsed template artifact. Header retains its trailing blank
// line separation; Body is trimmed; Footer includes the separator line
// preceding the end marker.
type Document struct {
	Header string
	Body   string
	Footer string
}

// Pages returns the number of page markers in the body.
func (d *Document) Pages() int {
	return chunk.Count(d.Body)
}

// Assemble rebuilds the full artifact from the (possibly corrected) body,
// with the original header and footer untouched.
func (d *Document) Assemble(body string) string {
	header := d.Header
	if !strings.HasSuffix(header, "\n\n") {
		header = strings.TrimRight(header, "\n") + "\n\n"
	}
	return header + strings.TrimSpace(body) + "\n\n" + d.Footer
}

// Parse splits a full artifact into header, body, and footer by the literal
// template markers.
func Parse(full string) (*Document, error) {
	bodyStart := strings.Index(full, beginMarker)
	footerStart := strings.Index(full, separator+"\n"+endMarker)
	if bodyStart < 0 || footerStart < 0 {
		return nil, &ParseError{Reason: "document markers not found"}
	}

	// Skip the BEGINNING marker line and the separator line that follows it.
	rest := full[bodyStart+len(beginMarker):]
	nl := strings.Index(rest, "\n")
	if nl < 0 {
		return nil, &ParseError{Reason: "truncated after begin marker"}
	}
	nl2 := strings.Index(rest[nl+1:], "\n")
	if nl2 < 0 {
		return nil, &ParseError{Reason: "truncated after begin separator"}
	}
	contentStart := bodyStart + len(beginMarker) + nl + 1 + nl2 + 1

	return &Document{
		Header: full[:contentStart],
		Body:   strings.TrimSpace(full[contentStart:footerStart]),
		Footer: full[footerStart:],
	}, nil
}

// HeaderField returns the value of a header field such as FieldDirectory.
func HeaderField(full, field string) (string, bool) {
	prefix := field + ": "
	for _, line := range strings.Split(full, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
		if line == beginMarker {
			break
		}
	}
	return "", false
}

// RewriteLinks replaces the PDF DIRECTORY and PDF PUBLIC LINK header lines
// in place. Returns false when neither line was found.
func RewriteLinks(full, directory, publicURL string) (string, bool) {
	lines := strings.Split(full, "\n")
	found := false
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, FieldDirectory+": "):
			lines[i] = FieldDirectory + ": " + directory
			found = true
		case strings.HasPrefix(line, FieldLink+": "):
			lines[i] = FieldLink + ": " + publicURL
			found = true
		}
		if line == beginMarker {
			break
		}
	}
	return strings.Join(lines, "\n"), found
}
