package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/romangod6/linkscout/internal/models"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown tables, handy
// for pasting into tickets.
type MarkdownWriter struct {
	output io.Writer
}

func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

func (w *MarkdownWriter) Write(report *models.OpportunityReport) error {
	md := markdown.NewMarkdown(w.output)

	md.H1("Internal Link Opportunities")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Scan ID", "`" + report.ScanID.String() + "`"},
			{"Sitemap", cell(report.SitemapURL)},
			{"Target", cell(report.TargetURL)},
			{"Keywords", cell(strings.Join(report.Keywords, ", "))},
			{"Pages discovered", strconv.Itoa(report.Discovered)},
			{"Pages examined", strconv.Itoa(report.Examined)},
			{"Pages fetched", strconv.Itoa(report.FetchedOK)},
			{"Duration", strconv.FormatInt(report.DurationMS, 10) + " ms"},
		},
	})
	md.PlainText("")

	md.H2("Opportunities")
	md.PlainText("")
	if len(report.Opportunities) == 0 {
		md.PlainText("No opportunities found with the current keywords/settings.")
	} else {
		rows := make([][]string, 0, len(report.Opportunities))
		for _, page := range report.Opportunities {
			for _, m := range page.Matches {
				rows = append(rows, []string{cell(page.SourceURL), cell(m.Keyword), cell(m.Snippet)})
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Source page", "Keyword", "Snippet"},
			Rows:   rows,
		})
	}
	md.PlainText("")

	if len(report.Errors) > 0 {
		md.H2("Pages that could not be checked")
		md.PlainText("")
		rows := make([][]string, 0, len(report.Errors))
		for _, page := range report.Errors {
			status := ""
			if page.StatusCode != 0 {
				status = strconv.Itoa(page.StatusCode)
			}
			rows = append(rows, []string{cell(page.SourceURL), status, cell(page.Error)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Page", "Status", "Error"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return md.Build()
}

// cell makes text safe inside a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
