package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/romangod6/linkscout/internal/models"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
			<sitemap><loc>http://%s/pages.xml</loc></sitemap>
		</sitemapindex>`, r.Host)
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
			<url><loc>http://%[1]s/a</loc></url>
			<url><loc>http://%[1]s/b</loc></url>
		</urlset>`, r.Host)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<p>Notes on espresso grinders.</p>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<p>Espresso grinders, <a href="/grinders/">compared</a>.</p>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	out, err := run(t, "resolve", srv.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := srv.URL + "/a\n" + srv.URL + "/b\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	out, err = run(t, "resolve", "--max-pages", "1", srv.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != srv.URL+"/a\n" {
		t.Errorf("output with --max-pages 1 = %q", out)
	}
}

func TestResolveCommandErrors(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	if _, err := run(t, "resolve", "example.com/sitemap.xml"); err == nil {
		t.Error("expected an error for a relative sitemap URL")
	}
	if _, err := run(t, "resolve", srv.URL+"/nope.xml"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected a 404 sitemap error, got %v", err)
	}
	if _, err := run(t, "resolve"); err == nil {
		t.Error("expected an error when the URL argument is missing")
	}
}

func TestScanCommandJSON(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	out, err := run(t, "scan",
		"--sitemap-url", srv.URL+"/sitemap.xml",
		"--target-url", srv.URL+"/grinders",
		"--keywords", "Espresso Grinders,burr",
		"--concurrency", "2",
	)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	var report models.OpportunityReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not a JSON report: %v\n%s", err, out)
	}
	if report.Examined != 2 || report.FetchedOK != 2 {
		t.Errorf("examined/fetched = %d/%d, want 2/2", report.Examined, report.FetchedOK)
	}
	if len(report.Opportunities) != 1 || report.Opportunities[0].SourceURL != srv.URL+"/a" {
		t.Errorf("opportunities = %+v", report.Opportunities)
	}
	if strings.Join(report.Keywords, ",") != "Espresso Grinders,burr" {
		t.Errorf("keywords = %q", report.Keywords)
	}
}

func TestScanCommandMarkdown(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	out, err := run(t, "scan", "-f", "markdown",
		"--sitemap-url", srv.URL+"/sitemap.xml",
		"--target-url", srv.URL+"/grinders/",
		"--keywords", "espresso",
	)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "# Internal Link Opportunities") || !strings.Contains(out, srv.URL+"/a") {
		t.Errorf("unexpected markdown output:\n%s", out)
	}
}

func TestScanCommandErrors(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing required flags", []string{"scan", "--sitemap-url", srv.URL + "/sitemap.xml"}},
		{"unknown format", []string{"scan", "-f", "xml", "--sitemap-url", srv.URL + "/sitemap.xml", "--target-url", srv.URL + "/x", "--keywords", "a"}},
		{"invalid target", []string{"scan", "--sitemap-url", srv.URL + "/sitemap.xml", "--target-url", "nope", "--keywords", "a"}},
	}
	for _, tt := range tests {
		if _, err := run(t, tt.args...); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}
