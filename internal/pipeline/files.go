// Package pipeline turns fetched data files into stored artifacts and
// extracted records. The ordering contract is that a file's artifact reaches
// storage before any record extracted from it.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/david/civic-crawler/internal/crawl"
	"github.com/david/civic-crawler/internal/extract"
	"github.com/david/civic-crawler/internal/models"
	"github.com/david/civic-crawler/internal/storage"
	"github.com/david/civic-crawler/internal/telemetry"
)

// Pipeline processes file jobs. Safe for concurrent use by the file workers.
type Pipeline struct {
	sink      storage.Sink
	monitor   *telemetry.Monitor
	citations *telemetry.Citations
	dataDir   string
	keepFiles bool
	log       zerolog.Logger
	now       func() time.Time
}

func New(sink storage.Sink, monitor *telemetry.Monitor, citations *telemetry.Citations, dataDir string, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		sink:      sink,
		monitor:   monitor,
		citations: citations,
		dataDir:   dataDir,
		keepFiles: true,
		log:       log,
		now:       time.Now,
	}
}

// Process runs one file end to end. Extraction failures are logged as
// parsing errors against the file URL; no artifact and no records are
// written for a failed file.
func (p *Pipeline) Process(ctx context.Context, item crawl.FrontierItem, parentPageURL string, result *crawl.FetchResult) error {
	fileURL := item.URL
	kind := crawl.Classify(result)
	if !kind.IsFile() {
		p.log.Debug().Str("url", fileURL).Str("kind", string(kind)).Msg("skipping unsupported file type")
		return nil
	}

	scratch, size, err := p.download(fileURL, result.Body)
	if err != nil {
		p.monitor.LogError(models.ErrorServer, fileURL, fmt.Sprintf("saving file: %v", err), item.Category)
		return err
	}
	if !p.keepFiles {
		defer os.Remove(scratch)
	}

	title := titleFromURL(fileURL)
	bundle, err := p.route(kind, result.Body, fileURL, title)
	if err != nil {
		p.monitor.LogError(models.ErrorParsing, fileURL, err.Error(), item.Category)
		return err
	}

	issues := extract.ValidateBundle(bundle)
	for _, issue := range append(bundle.ParseErrors, issues...) {
		p.monitor.LogError(models.ErrorParsing, fileURL, issue, item.Category)
	}

	p.citations.RecordEdge(fileURL, parentPageURL)

	artifact := models.FileArtifact{
		FileURL:       fileURL,
		ParentPageURL: parentPageURL,
		FileType:      string(kind),
		FileSize:      size,
		Title:         title,
		Category:      item.Category,
		Summary: models.ExtractionSummary{
			TotalItems:     bundle.TotalItems(),
			ProcessingDate: p.now(),
			DataTypes:      bundle.DataTypes(),
		},
	}

	// The artifact goes first so extracted records never reference a file
	// that storage has not seen.
	if err := p.sink.Write(ctx, models.KindFileArtifact, artifact); err != nil {
		return fmt.Errorf("writing artifact for %s: %w", fileURL, err)
	}
	domain := hostOf(fileURL)
	p.monitor.RecordWritten(domain, item.Category)

	if err := p.writeBundle(ctx, bundle, domain, item.Category); err != nil {
		return err
	}

	p.log.Info().Str("url", fileURL).Int("items", bundle.TotalItems()).Msg("processed file")
	return nil
}

func (p *Pipeline) route(kind crawl.ResourceKind, body []byte, fileURL, title string) (*extract.Bundle, error) {
	now := p.now()
	switch kind {
	case crawl.KindCSVFile:
		return extract.ExtractCSV(body, fileURL, now)
	case crawl.KindExcelFile:
		// Legacy .xls needs the OLE reader; everything else is a zip.
		if strings.HasSuffix(strings.ToLower(strings.TrimRight(fileURL, "/")), ".xls") {
			return extract.ExtractXLS(body, fileURL, now)
		}
		return extract.ExtractXLSX(body, fileURL, now)
	case crawl.KindPDFDocument:
		return extract.ExtractPDF(body, fileURL, title, now)
	case crawl.KindTextFile:
		return extract.ExtractText(body, fileURL, now)
	default:
		return nil, fmt.Errorf("no extractor for %s", kind)
	}
}

func (p *Pipeline) writeBundle(ctx context.Context, bundle *extract.Bundle, domain, category string) error {
	write := func(kind models.RecordKind, record any) error {
		if err := p.sink.Write(ctx, kind, record); err != nil {
			return fmt.Errorf("writing %s: %w", kind, err)
		}
		p.monitor.RecordWritten(domain, category)
		return nil
	}

	for _, item := range bundle.BudgetItems {
		if err := write(models.KindBudgetItem, item); err != nil {
			return err
		}
	}
	for _, rec := range bundle.SpendingRecords {
		if err := write(models.KindSpendingRecord, rec); err != nil {
			return err
		}
	}
	for _, d := range bundle.StatisticalData {
		if err := write(models.KindStatisticalDatum, d); err != nil {
			return err
		}
	}
	for _, app := range bundle.Planning {
		if err := write(models.KindPlanningApplication, app); err != nil {
			return err
		}
	}
	if bundle.Agenda != nil {
		if err := write(models.KindAgendaDocument, *bundle.Agenda); err != nil {
			return err
		}
	}
	if bundle.Minutes != nil {
		if err := write(models.KindMinutesDocument, *bundle.Minutes); err != nil {
			return err
		}
	}
	return nil
}

// download writes the body to the scratch directory and reports its size.
func (p *Pipeline) download(fileURL string, body []byte) (string, int64, error) {
	dir := filepath.Join(p.dataDir, "files")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	name := uuid.NewString() + "_" + sanitizeFilename(titleFromURL(fileURL))
	dest := filepath.Join(dir, name)
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return "", 0, err
	}
	return dest, int64(len(body)), nil
}

// titleFromURL derives a display title from the last path segment.
func titleFromURL(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil {
		return fileURL
	}
	base := path.Base(u.Path)
	if base == "" || base == "/" || base == "." {
		return u.Host
	}
	return base
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return strings.ToLower(u.Host)
	}
	return ""
}
