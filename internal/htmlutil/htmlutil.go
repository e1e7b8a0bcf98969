package htmlutil

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("bankstatements.internal.htmlutil")

var scriptBlock = regexp.MustCompile(`(?is)<script(.*?)>(.*?)</script>`)

// StripScripts removes every <script> block from a raw html body.
func StripScripts(body string) string {
	return scriptBlock.ReplaceAllString(body, "")
}

// Parse strips scripts out of body and parses what is left leniently.
func Parse(ctx context.Context, body string) (*goquery.Document, error) {
	_, span := tracer.Start(ctx, "Parse")
	defer span.End()
	span.SetAttributes(attribute.Int("body_length", len(body)))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(StripScripts(body)))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer, false)
	return buffer.String()
}

// GetTextWithBreaks is GetText except that every <br> becomes a '|'.
func GetTextWithBreaks(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer, true)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer, breaks bool) {
	if node == nil {
		return
	}
	switch {
	case node.Type == html.TextNode:
		buffer.WriteString(node.Data)
		return
	case breaks && node.Type == html.ElementNode && node.Data == "br":
		buffer.WriteByte('|')
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer, breaks)
	}
}

var spaceBeforeSeparator = regexp.MustCompile(` +\|`)

// Description turns the contents of a description cell into a '|' separated line.
//
// ex. "TRANSFER <br>TO JOHN<br>" -> "TRANSFER|TO JOHN"
func Description(cell *html.Node) string {
	text := strings.TrimSpace(GetTextWithBreaks(cell))
	text = strings.TrimRight(text, "|")
	text = spaceBeforeSeparator.ReplaceAllString(text, "|")
	return strings.TrimSpace(text)
}

// Text is the trimmed text content of a node.
func Text(node *html.Node) string {
	return strings.TrimSpace(GetText(node))
}

func isTag(node *html.Node, tags ...string) bool {
	if node.Type != html.ElementNode {
		return false
	}
	for _, t := range tags {
		if node.Data == t {
			return true
		}
	}
	return false
}

// TableRows returns the rows that belong directly to `table`, in document order.
// Rows of nested tables are not included.
func TableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	for child := table.FirstChild; child != nil; child = child.NextSibling {
		switch {
		case isTag(child, "tr"):
			rows = append(rows, child)
		case isTag(child, "thead", "tbody", "tfoot"):
			for row := child.FirstChild; row != nil; row = row.NextSibling {
				if isTag(row, "tr") {
					rows = append(rows, row)
				}
			}
		}
	}
	return rows
}

// RowCells returns the element children of a row, whitespace between cells is skipped
// so the n-th cell of a row is at index n.
func RowCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	for child := row.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			cells = append(cells, child)
		}
	}
	return cells
}

// NthTable returns the table at position `index` among all tables of the document,
// nested tables included.
func NthTable(doc *goquery.Document, index int) (*html.Node, bool) {
	tables := doc.Find("table")
	if index < 0 || index >= tables.Length() {
		return nil, false
	}
	return tables.Get(index), true
}
