package crawl

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/david/civic-crawler/internal/extract"
	"github.com/david/civic-crawler/internal/models"
	"github.com/david/civic-crawler/internal/storage"
)

// FileProcessor handles a fetched data file. The pipeline package provides
// the production implementation; keeping it behind an interface lets the
// orchestrator stay ignorant of extraction details.
type FileProcessor interface {
	Process(ctx context.Context, item FrontierItem, parentPageURL string, result *FetchResult) error
}

// Reporter is the telemetry surface the orchestrator needs: the fetch events
// plus coverage counting for written records.
type Reporter interface {
	Telemetry
	RecordWritten(domain, category string)
}

// seedChecker is satisfied by fetchers that can consult robots.txt before
// the crawl starts.
type seedChecker interface {
	SeedAllowed(ctx context.Context, rawURL string) bool
}

type OrchestratorConfig struct {
	Workers       int
	FileWorkers   int
	FileQueueSize int
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.FileWorkers <= 0 {
		c.FileWorkers = 2
	}
	if c.FileQueueSize <= 0 {
		c.FileQueueSize = 64
	}
	return c
}

// Orchestrator drives a crawl run: it seeds the frontier, runs the fetch
// worker pool, hands data files to the file workers, and stops when the
// frontier is exhausted or the context is cancelled.
type Orchestrator struct {
	reg      *Registry
	frontier *Frontier
	fetcher  Fetcher
	sink     storage.Sink
	reporter Reporter
	files    FileProcessor
	cfg      OrchestratorConfig
	log      zerolog.Logger
	sanitize *bluemonday.Policy

	inflight atomic.Int64
	pages    atomic.Int64
	filesOut atomic.Int64
}

func NewOrchestrator(reg *Registry, frontier *Frontier, fetcher Fetcher, sink storage.Sink, reporter Reporter, files FileProcessor, cfg OrchestratorConfig, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		reg:      reg,
		frontier: frontier,
		fetcher:  fetcher,
		sink:     sink,
		reporter: reporter,
		files:    files,
		cfg:      cfg.withDefaults(),
		log:      log,
		sanitize: bluemonday.StrictPolicy(),
	}
}

type fileJob struct {
	item   FrontierItem
	parent string
	result *FetchResult
}

// Run executes the crawl. It returns ctx.Err() when cancelled; in-flight
// file jobs are still drained to storage before it returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.checkSeeds(ctx); err != nil {
		return err
	}

	seeded := 0
	for _, seed := range o.reg.Seeds() {
		if o.frontier.Enqueue(seed) == EnqueueAccepted {
			seeded++
		}
	}
	if seeded == 0 {
		return fmt.Errorf("%w: no seed URLs accepted", ErrConfig)
	}
	o.log.Info().Int("seeds", seeded).Int("workers", o.cfg.Workers).Msg("starting crawl")

	jobs := make(chan fileJob, o.cfg.FileQueueSize)

	// File workers drain even after cancellation so nothing fetched is lost.
	drainCtx := context.WithoutCancel(ctx)
	var fileGroup errgroup.Group
	for i := 0; i < o.cfg.FileWorkers; i++ {
		fileGroup.Go(func() error {
			for job := range jobs {
				if err := o.files.Process(drainCtx, job.item, job.parent, job.result); err != nil {
					o.log.Debug().Err(err).Str("url", job.item.URL).Msg("file processing failed")
				} else {
					o.filesOut.Add(1)
				}
			}
			return nil
		})
	}

	var fetchGroup errgroup.Group
	for i := 0; i < o.cfg.Workers; i++ {
		fetchGroup.Go(func() error {
			return o.fetchWorker(ctx, jobs)
		})
	}

	err := fetchGroup.Wait()
	close(jobs)
	if ferr := fileGroup.Wait(); err == nil {
		err = ferr
	}

	o.log.Info().
		Int64("pages", o.pages.Load()).
		Int64("files", o.filesOut.Load()).
		Msg("crawl finished")

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// checkSeeds verifies every seed against robots.txt. A disallowed seed is a
// configuration problem, not a crawl error.
func (o *Orchestrator) checkSeeds(ctx context.Context) error {
	checker, ok := o.fetcher.(seedChecker)
	if !ok {
		return nil
	}
	for _, d := range o.reg.Domains() {
		for _, seed := range d.Seeds {
			if !checker.SeedAllowed(ctx, seed) {
				return fmt.Errorf("%w: seed %s is disallowed by robots.txt", ErrConfig, seed)
			}
		}
	}
	return nil
}

func (o *Orchestrator) fetchWorker(ctx context.Context, jobs chan<- fileJob) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		item, ok := o.frontier.Dequeue()
		if !ok {
			// Another worker may still be mid-page and about to enqueue
			// more links.
			if o.inflight.Load() == 0 && o.frontier.Size() == 0 {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		o.inflight.Add(1)
		o.handle(ctx, item, jobs)
		o.inflight.Add(-1)
	}
}

func (o *Orchestrator) handle(ctx context.Context, item FrontierItem, jobs chan<- fileJob) {
	result, err := o.fetcher.Fetch(ctx, item)
	if err != nil {
		// The fetcher already reported the failure; nothing to store.
		return
	}

	// Redirect sources are burned so the old locations never re-enter the
	// queue; the landing URL is what gets processed below.
	for _, hop := range result.Redirects {
		o.frontier.MarkSeen(hop.From)
	}

	finalURL := NormalizeURL(result.FinalURL)
	if !o.reg.Allowed(hostOf(finalURL)) {
		o.log.Debug().Str("url", item.URL).Str("final", finalURL).Msg("redirected out of scope")
		return
	}
	o.frontier.MarkSeen(finalURL)

	switch kind := Classify(result); {
	case kind == KindHTMLPage:
		o.processPage(ctx, item, finalURL, result)
	case kind.IsFile():
		parent := item.DiscoveredFrom
		if parent == "" {
			parent = finalURL
		}
		select {
		case jobs <- fileJob{item: item, parent: parent, result: result}:
		case <-ctx.Done():
		}
	default:
		o.log.Debug().Str("url", item.URL).Str("content_type", result.ContentType).Msg("unsupported resource type")
	}
}

func (o *Orchestrator) processPage(ctx context.Context, item FrontierItem, pageURL string, result *FetchResult) {
	now := time.Now()
	score := ScoreHTML(result.Body, pageURL, item.Category, now)

	title, description := pageMeta(result.Body)
	record := models.PageRecord{
		URL:           pageURL,
		ParentURL:     item.DiscoveredFrom,
		Title:         o.sanitize.Sanitize(title),
		Description:   o.sanitize.Sanitize(description),
		Category:      item.Category,
		ContentLength: len(result.Body),
		QualityScore:  score.OverallScore,
		CrawledAt:     now,
	}
	if err := o.sink.Write(ctx, models.KindPageRecord, record); err != nil {
		o.log.Error().Err(err).Str("url", pageURL).Msg("storing page record")
		return
	}
	host := hostOf(pageURL)
	o.reporter.RecordWritten(host, item.Category)
	o.pages.Add(1)

	if item.Category == "planning_applications" || item.Category == "planning" {
		if app, err := extract.ExtractPlanningHTML(result.Body, pageURL, host); err == nil && app != nil {
			if err := o.sink.Write(ctx, models.KindPlanningApplication, *app); err != nil {
				o.log.Error().Err(err).Str("url", pageURL).Msg("storing planning application")
			} else {
				o.reporter.RecordWritten(host, "planning_applications")
			}
		}
	}

	links, err := ExtractLinks(pageURL, result.Body, item.Category)
	if err != nil {
		o.reporter.LogError(models.ErrorParsing, pageURL, fmt.Sprintf("extracting links: %v", err), item.Category)
		return
	}
	for _, link := range links {
		o.frontier.Enqueue(FrontierItem{
			URL:            link.URL,
			Depth:          item.Depth + 1,
			Category:       link.InferredCategory,
			DiscoveredFrom: pageURL,
			Priority:       link.Priority,
			EnqueuedAt:     now,
		})
	}
	o.log.Info().Str("url", pageURL).Int("score", score.OverallScore).Int("links", len(links)).Msg("crawled page")
}

// pageMeta pulls the title and meta description out of an HTML document.
func pageMeta(body []byte) (title, description string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}
	title = clean(doc.Find("title").First().Text())
	if title == "" {
		title = clean(doc.Find("h1").First().Text())
	}
	description, _ = doc.Find(`meta[name="description"]`).Attr("content")
	return title, clean(description)
}

func clean(s string) string {
	fields := bytes.Fields([]byte(s))
	return string(bytes.Join(fields, []byte(" ")))
}
