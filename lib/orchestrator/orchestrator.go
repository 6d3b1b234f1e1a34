package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reviewlens-client/lib/gateway"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("orchestrator")

var (
	// the batch call nominally succeeded but carried zero usable
	// results; deliberately reported as a failure, never as a
	// vacuous success
	ErrEmptyResult = errors.New("The server returned no results for this batch.")
	// the scrape stage produced nothing to analyze
	ErrNoReviews = errors.New("No reviews found to analyze")
)

// Stage is the per-product pipeline position. There are no automatic
// retries at any transition; a failed stage terminates that unit's
// pipeline.
type Stage string

const (
	StageIdle          Stage = "idle"
	StageScraping      Stage = "scraping"
	StageScraped       Stage = "scraped"
	StageScrapeFailed  Stage = "scrape_failed"
	StageAnalyzing     Stage = "analyzing"
	StageAnalyzed      Stage = "analyzed"
	StageAnalyzeFailed Stage = "analyze_failed"
)

type Review struct {
	Author string  `json:"author,omitempty"`
	Rating float64 `json:"rating,omitempty"`
	Text   string  `json:"text"`
	// sentiment label assigned by the analysis stage
	// (positive/negative/neutral), empty before analysis
	Sentiment string `json:"sentiment,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Product is the caller-supplied reference. The orchestration layer
// treats it as opaque input and validates only the fields each
// operation needs.
type Product struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Link    string   `json:"link"`
	Reviews []Review `json:"reviews"`
}

type SentimentSummary struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

type ScrapeResult struct {
	ProductID string   `json:"product_id"`
	Reviews   []Review `json:"reviews"`
}

type AnalyzeResult struct {
	ProductID string            `json:"product_id"`
	Reviews   []Review          `json:"reviews"`
	Summary   *SentimentSummary `json:"sentiment_summary"`
}

// AnalyzedProduct is the input product enriched with the pipeline's
// output.
type AnalyzedProduct struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Link             string            `json:"link"`
	Reviews          []Review          `json:"reviews"`
	SentimentSummary *SentimentSummary `json:"sentiment_summary,omitempty"`
	AnalyzedAt       string            `json:"analyzed_at"`
}

type Stats struct {
	TotalReviews int            `json:"total_reviews"`
	Summary      PercentSummary `json:"summary"`
}

type AnalysisResult struct {
	ProductID string          `json:"product_id"`
	Product   AnalyzedProduct `json:"product"`
	Stats     Stats           `json:"stats"`
}

// ResultSink receives completed analyses for persistence; the result
// cache implements it. Sink failures are logged, not propagated: a
// completed analysis is still a success even if it could not be
// cached.
type ResultSink interface {
	Save(ctx context.Context, result AnalysisResult) error
}

// Orchestrator composes scraping and sentiment-analysis calls into
// single- and multi-product pipelines. It performs no concurrent
// fan-out: bulk operations fold everything into one batched request.
type Orchestrator struct {
	api  *gateway.Client
	sink ResultSink
}

func New(api *gateway.Client, sink ResultSink) *Orchestrator {
	return &Orchestrator{api: api, sink: sink}
}

type batchRequest struct {
	ProductIDs []string  `json:"product_ids"`
	Products   []Product `json:"products"`
}

type batchResponse struct {
	Success       bool            `json:"success"`
	Results       []ScrapeResult  `json:"results"`
	TotalReviews  int             `json:"total_reviews"`
	TotalProducts int             `json:"total_products"`
	Error         string          `json:"error"`
}

type analyzeResponse struct {
	Success bool            `json:"success"`
	Results []AnalyzeResult `json:"results"`
	Error   string          `json:"error"`
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// ScrapeReviews issues one batched scrape for every product in ids
// that has both an id and a link. Products missing a link are
// excluded from the outgoing batch (and therefore absent from the
// returned map); callers must treat them as unchanged.
func (o *Orchestrator) ScrapeReviews(ctx context.Context, ids []string, products []Product) (map[string]ScrapeResult, error) {
	ctx, span := tracer.Start(ctx, "ScrapeReviews")
	defer span.End()

	err := o.api.EnsureAuthenticated()
	if err != nil {
		return nil, err
	}

	wanted := idSet(ids)
	var filtered []Product
	for _, p := range products {
		if wanted[p.ID] && p.ID != "" && p.Link != "" {
			filtered = append(filtered, p)
		}
	}
	span.SetAttributes(attribute.KeyValue{
		Key:   "batch_size",
		Value: attribute.IntValue(len(filtered)),
	})
	if len(filtered) == 0 {
		span.SetStatus(codes.Error, "nothing to scrape")
		return nil, &gateway.ValidationError{
			Message: "None of the selected products have a link to scrape.",
		}
	}

	filteredIds := make([]string, len(filtered))
	for i, p := range filtered {
		filteredIds[i] = p.ID
	}

	var res batchResponse
	err = o.api.Post(ctx, "/scrape-reviews", batchRequest{
		ProductIDs: filteredIds,
		Products:   filtered,
	}, &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape request failed")
		return nil, err
	}
	// a 200 with no usable results is still a failure for the whole
	// batch
	if !res.Success || len(res.Results) == 0 {
		span.SetStatus(codes.Error, "empty scrape batch")
		return nil, ErrEmptyResult
	}

	out := make(map[string]ScrapeResult, len(res.Results))
	for _, r := range res.Results {
		out[r.ProductID] = r
	}
	return out, nil
}

// AnalyzeSentiment issues one batched analysis for every product in
// ids that carries at least one review. Same emptiness and batching
// policy as ScrapeReviews.
func (o *Orchestrator) AnalyzeSentiment(ctx context.Context, ids []string, products []Product) (map[string]AnalyzeResult, error) {
	ctx, span := tracer.Start(ctx, "AnalyzeSentiment")
	defer span.End()

	err := o.api.EnsureAuthenticated()
	if err != nil {
		return nil, err
	}

	wanted := idSet(ids)
	var filtered []Product
	for _, p := range products {
		if wanted[p.ID] && p.ID != "" && len(p.Reviews) > 0 {
			filtered = append(filtered, p)
		}
	}
	span.SetAttributes(attribute.KeyValue{
		Key:   "batch_size",
		Value: attribute.IntValue(len(filtered)),
	})
	if len(filtered) == 0 {
		span.SetStatus(codes.Error, "nothing to analyze")
		return nil, &gateway.ValidationError{
			Message: "None of the selected products have reviews to analyze.",
		}
	}

	filteredIds := make([]string, len(filtered))
	for i, p := range filtered {
		filteredIds[i] = p.ID
	}

	var res analyzeResponse
	err = o.api.Post(ctx, "/analyze-sentiment", batchRequest{
		ProductIDs: filteredIds,
		Products:   filtered,
	}, &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analyze request failed")
		return nil, err
	}
	if !res.Success || len(res.Results) == 0 {
		span.SetStatus(codes.Error, "empty analyze batch")
		return nil, ErrEmptyResult
	}

	out := make(map[string]AnalyzeResult, len(res.Results))
	for _, r := range res.Results {
		out[r.ProductID] = r
	}
	return out, nil
}

// Outcome is the per-product record bulk operations report. A failed
// product never aborts the remaining ones.
type Outcome struct {
	ProductID string
	Stage     Stage
	Scraped   *ScrapeResult
	Analysis  *AnalysisResult
	Err       error
}

func (o Outcome) Success() bool {
	return o.Err == nil
}

// CompleteAnalysis runs the two-phase single-product pipeline: scrape
// first, then feed the scraped reviews into the analysis stage. A
// scrape failure or an empty scrape short-circuits before any analyze
// call is issued.
func (o *Orchestrator) CompleteAnalysis(ctx context.Context, product Product) (*AnalysisResult, error) {
	outcome := o.runComplete(ctx, product)
	return outcome.Analysis, outcome.Err
}

func (o *Orchestrator) runComplete(ctx context.Context, product Product) Outcome {
	ctx, span := tracer.Start(ctx, "CompleteAnalysis")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "product_id",
		Value: attribute.StringValue(product.ID),
	})

	outcome := Outcome{ProductID: product.ID, Stage: StageScraping}

	scraped, err := o.ScrapeReviews(ctx, []string{product.ID}, []Product{product})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape stage failed")
		outcome.Stage = StageScrapeFailed
		if errors.Is(err, ErrEmptyResult) {
			err = ErrNoReviews
		}
		outcome.Err = err
		return outcome
	}
	result, ok := scraped[product.ID]
	if !ok || len(result.Reviews) == 0 {
		span.SetStatus(codes.Error, "no reviews scraped")
		outcome.Stage = StageScrapeFailed
		outcome.Err = ErrNoReviews
		return outcome
	}
	outcome.Stage = StageScraped
	outcome.Scraped = &result

	enriched := product
	enriched.Reviews = result.Reviews

	outcome.Stage = StageAnalyzing
	analyzed, err := o.AnalyzeSentiment(ctx, []string{product.ID}, []Product{enriched})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analyze stage failed")
		outcome.Stage = StageAnalyzeFailed
		outcome.Err = err
		return outcome
	}
	analysis, ok := analyzed[product.ID]
	if !ok {
		span.SetStatus(codes.Error, "analyze response missing product")
		outcome.Stage = StageAnalyzeFailed
		outcome.Err = ErrEmptyResult
		return outcome
	}

	reviews := analysis.Reviews
	if len(reviews) == 0 {
		reviews = result.Reviews
	}
	final := AnalysisResult{
		ProductID: product.ID,
		Product: AnalyzedProduct{
			ID:               product.ID,
			Title:            product.Title,
			Link:             product.Link,
			Reviews:          reviews,
			SentimentSummary: analysis.Summary,
			AnalyzedAt:       time.Now().UTC().Format(time.RFC3339),
		},
		Stats: buildStats(reviews, analysis.Summary),
	}

	if o.sink != nil {
		err = o.sink.Save(ctx, final)
		if err != nil {
			slog.WarnContext(ctx, "failed to cache analysis result",
				"product_id", product.ID, "err", err)
		}
	}

	outcome.Stage = StageAnalyzed
	outcome.Analysis = &final
	return outcome
}

// Action selects the per-product pipeline ProcessProducts runs.
type Action string

const (
	ActionScrape           Action = "scrape"
	ActionCompleteAnalysis Action = "complete"
)

// ProcessProducts runs the selected pipeline for each product in
// order, one at a time. Sequential on purpose: predictable backend
// load and simple error attribution beat throughput here.
func (o *Orchestrator) ProcessProducts(ctx context.Context, products []Product, action Action) []Outcome {
	ctx, span := tracer.Start(ctx, "ProcessProducts")
	defer span.End()
	span.SetAttributes(
		attribute.KeyValue{
			Key:   "count",
			Value: attribute.IntValue(len(products)),
		},
		attribute.KeyValue{
			Key:   "action",
			Value: attribute.StringValue(string(action)),
		},
	)

	outcomes := make([]Outcome, 0, len(products))
	for _, product := range products {
		switch action {
		case ActionScrape:
			outcome := Outcome{ProductID: product.ID, Stage: StageScraping}
			scraped, err := o.ScrapeReviews(ctx, []string{product.ID}, []Product{product})
			if err != nil {
				outcome.Stage = StageScrapeFailed
				outcome.Err = err
			} else if result, ok := scraped[product.ID]; ok {
				outcome.Stage = StageScraped
				outcome.Scraped = &result
			} else {
				outcome.Stage = StageScrapeFailed
				outcome.Err = ErrEmptyResult
			}
			outcomes = append(outcomes, outcome)
		default:
			outcomes = append(outcomes, o.runComplete(ctx, product))
		}
	}
	return outcomes
}
