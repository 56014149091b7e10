package telemetry

import (
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/david/civic-crawler/internal/models"
)

// Citations tracks how files were discovered: one edge per
// (fileURL, parentPageURL) pair, recorded exactly once.
type Citations struct {
	mu    sync.Mutex
	edges map[[2]string]*models.CitationEdge
	order [][2]string
	now   func() time.Time
}

func NewCitations() *Citations {
	return &Citations{
		edges: make(map[[2]string]*models.CitationEdge),
		now:   time.Now,
	}
}

// Analysis is what a URL's shape says about the resource behind it.
type Analysis struct {
	SuggestedType      string
	IsDirectFile       bool
	FileType           string
	Domain             string
	IsGovernmentDomain bool
}

// RecordEdge stores the citation edge. Repeat calls with the same pair are
// no-ops and return the existing edge.
func (c *Citations) RecordEdge(fileURL, parentPageURL string) models.CitationEdge {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := [2]string{fileURL, parentPageURL}
	if existing, ok := c.edges[key]; ok {
		return *existing
	}

	a := Analyze(fileURL)
	edge := &models.CitationEdge{
		FileURL:            fileURL,
		ParentPageURL:      parentPageURL,
		SuggestedType:      a.SuggestedType,
		IsDirectFile:       a.IsDirectFile,
		FileType:           a.FileType,
		Domain:             a.Domain,
		IsGovernmentDomain: a.IsGovernmentDomain,
		RecordedAt:         c.now(),
	}
	c.edges[key] = edge
	c.order = append(c.order, key)
	return *edge
}

// EdgesForFile returns every recorded edge whose file URL matches.
func (c *Citations) EdgesForFile(fileURL string) []models.CitationEdge {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.CitationEdge
	for _, key := range c.order {
		if key[0] == fileURL {
			out = append(out, *c.edges[key])
		}
	}
	return out
}

// FilesForPage returns every file URL discovered on the given page.
func (c *Citations) FilesForPage(pageURL string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, key := range c.order {
		if key[1] == pageURL {
			out = append(out, key[0])
		}
	}
	return out
}

// Len reports the number of distinct edges.
func (c *Citations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.edges)
}

var fileExtTypes = map[string]string{
	".pdf": "pdf", ".csv": "csv", ".xlsx": "xlsx", ".xls": "xls", ".txt": "text",
}

// Analyze classifies a URL by shape alone, without fetching it.
func Analyze(rawURL string) Analysis {
	a := Analysis{SuggestedType: "other"}

	u, err := url.Parse(rawURL)
	if err != nil {
		return a
	}
	host := strings.ToLower(u.Host)
	lowerPath := strings.ToLower(u.Path)
	a.Domain = host
	a.IsGovernmentDomain = strings.Contains(host, ".gov.uk") || strings.Contains(host, "moderngov")

	ext := strings.ToLower(path.Ext(lowerPath))
	if t, ok := fileExtTypes[ext]; ok {
		a.IsDirectFile = true
		a.FileType = t
	}

	switch {
	case strings.Contains(host, "moderngov") || strings.Contains(lowerPath, "/meetings/"):
		a.SuggestedType = "meetings"
	case strings.Contains(lowerPath, "/transparency") || (a.IsDirectFile && (ext == ".csv" || ext == ".xlsx")):
		a.SuggestedType = "transparency"
	case strings.Contains(host, "paplanning") || strings.Contains(lowerPath, "/application"):
		a.SuggestedType = "planning"
	case a.IsGovernmentDomain:
		a.SuggestedType = "services"
	}

	return a
}
