package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"reviewlens-client/lib/gateway"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	saved []AnalysisResult
}

func (s *recordingSink) Save(ctx context.Context, result AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, result)
	return nil
}

type fakeBackend struct {
	scrapeReviews   func(req batchRequest) (int, any)
	analyzeReviews  func(req batchRequest) (int, any)
	scrapeRequests  []batchRequest
	analyzeRequests []batchRequest
	requestCount    atomic.Int64
	mu              sync.Mutex
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scrape-reviews", func(w http.ResponseWriter, r *http.Request) {
		f.requestCount.Add(1)
		var req batchRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.scrapeRequests = append(f.scrapeRequests, req)
		f.mu.Unlock()

		status, body := f.scrapeReviews(req)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("POST /analyze-sentiment", func(w http.ResponseWriter, r *http.Request) {
		f.requestCount.Add(1)
		var req batchRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.analyzeRequests = append(f.analyzeRequests, req)
		f.mu.Unlock()

		status, body := f.analyzeReviews(req)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
	return mux
}

type staticTokens string

func (s staticTokens) Token() string { return string(s) }

func setup(t *testing.T, backend *fakeBackend, token string) (*Orchestrator, *recordingSink) {
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	api, err := gateway.NewClient(context.Background(), gateway.Options{
		BaseUrl: server.URL,
		Tokens:  staticTokens(token),
	})
	if err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	return New(api, sink), sink
}

func reviewsOf(n int) []Review {
	reviews := make([]Review, n)
	for i := range reviews {
		reviews[i] = Review{Text: "great product", Rating: 5}
	}
	return reviews
}

func scrapeOK(reviews map[string][]Review) func(batchRequest) (int, any) {
	return func(req batchRequest) (int, any) {
		var results []ScrapeResult
		total := 0
		for _, id := range req.ProductIDs {
			rs, ok := reviews[id]
			if !ok {
				continue
			}
			results = append(results, ScrapeResult{ProductID: id, Reviews: rs})
			total += len(rs)
		}
		return 200, map[string]any{
			"success":        true,
			"results":        results,
			"total_reviews":  total,
			"total_products": len(results),
		}
	}
}

func analyzeOK(summaries map[string]SentimentSummary) func(batchRequest) (int, any) {
	return func(req batchRequest) (int, any) {
		var results []AnalyzeResult
		for _, p := range req.Products {
			summary, ok := summaries[p.ID]
			if !ok {
				continue
			}
			results = append(results, AnalyzeResult{
				ProductID: p.ID,
				Reviews:   p.Reviews,
				Summary:   &summary,
			})
		}
		return 200, map[string]any{"success": true, "results": results}
	}
}

func TestScrapeExcludesLinklessProducts(t *testing.T) {
	backend := &fakeBackend{
		scrapeReviews: scrapeOK(map[string][]Review{
			"p1": reviewsOf(2),
			"p2": reviewsOf(3),
			"p4": reviewsOf(1),
		}),
	}
	orch, _ := setup(t, backend, "tok")

	products := []Product{
		{ID: "p1", Link: "https://shop/p1"},
		{ID: "p2", Link: "https://shop/p2"},
		{ID: "p3"}, // no link
		{ID: "p4", Link: "https://shop/p4"},
		{ID: "p5"}, // no link
	}
	ids := []string{"p1", "p2", "p3", "p4", "p5"}

	results, err := orch.ScrapeReviews(context.Background(), ids, products)
	require.NoError(t, err)

	// the outgoing batch only carried the three products with links
	require.Len(t, backend.scrapeRequests, 1)
	require.Equal(t, []string{"p1", "p2", "p4"}, backend.scrapeRequests[0].ProductIDs)

	require.Len(t, results, 3)
	require.NotContains(t, results, "p3")
	require.NotContains(t, results, "p5")
	require.Len(t, results["p2"].Reviews, 3)
}

func TestScrapeNothingValidFailsBeforeDispatch(t *testing.T) {
	backend := &fakeBackend{
		scrapeReviews: scrapeOK(nil),
	}
	orch, _ := setup(t, backend, "tok")

	products := []Product{{ID: "p1"}, {ID: "p2"}}
	_, err := orch.ScrapeReviews(context.Background(), []string{"p1", "p2"}, products)

	var validationErr *gateway.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.EqualValues(t, 0, backend.requestCount.Load())
}

func TestScrapeRequiresAuth(t *testing.T) {
	backend := &fakeBackend{scrapeReviews: scrapeOK(nil)}
	orch, _ := setup(t, backend, "")

	products := []Product{{ID: "p1", Link: "https://shop/p1"}}
	_, err := orch.ScrapeReviews(context.Background(), []string{"p1"}, products)
	require.ErrorIs(t, err, gateway.ErrAuthRequired)
	require.EqualValues(t, 0, backend.requestCount.Load())
}

func TestEmptySuccessIsFailure(t *testing.T) {
	backend := &fakeBackend{
		scrapeReviews: func(req batchRequest) (int, any) {
			return 200, map[string]any{"success": true, "results": []any{}}
		},
	}
	orch, _ := setup(t, backend, "tok")

	products := []Product{{ID: "p1", Link: "https://shop/p1"}}
	_, err := orch.ScrapeReviews(context.Background(), []string{"p1"}, products)
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestSuccessFalseIsFailure(t *testing.T) {
	backend := &fakeBackend{
		scrapeReviews: func(req batchRequest) (int, any) {
			return 200, map[string]any{
				"success": false,
				"results": []ScrapeResult{{ProductID: "p1", Reviews: reviewsOf(1)}},
			}
		},
	}
	orch, _ := setup(t, backend, "tok")

	products := []Product{{ID: "p1", Link: "https://shop/p1"}}
	_, err := orch.ScrapeReviews(context.Background(), []string{"p1"}, products)
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestAnalyzeFiltersReviewlessProducts(t *testing.T) {
	backend := &fakeBackend{
		analyzeReviews: analyzeOK(map[string]SentimentSummary{
			"p1": {Positive: 2},
		}),
	}
	orch, _ := setup(t, backend, "tok")

	products := []Product{
		{ID: "p1", Reviews: reviewsOf(2)},
		{ID: "p2"}, // nothing to analyze
	}
	results, err := orch.AnalyzeSentiment(context.Background(), []string{"p1", "p2"}, products)
	require.NoError(t, err)

	require.Len(t, backend.analyzeRequests, 1)
	require.Equal(t, []string{"p1"}, backend.analyzeRequests[0].ProductIDs)
	require.Len(t, results, 1)
}

func TestCompleteAnalysis(t *testing.T) {
	backend := &fakeBackend{
		scrapeReviews: scrapeOK(map[string][]Review{
			"p1": reviewsOf(12),
		}),
		analyzeReviews: analyzeOK(map[string]SentimentSummary{
			"p1": {Positive: 8, Negative: 3, Neutral: 1},
		}),
	}
	orch, sink := setup(t, backend, "tok")

	result, err := orch.CompleteAnalysis(context.Background(), Product{
		ID:    "p1",
		Title: "Mechanical Keyboard",
		Link:  "https://shop/p1",
	})
	require.NoError(t, err)
	require.Equal(t, "p1", result.ProductID)
	require.Equal(t, 12, result.Stats.TotalReviews)
	require.Equal(t, 66, result.Stats.Summary.Positive)
	require.Equal(t, 25, result.Stats.Summary.Negative)
	require.Equal(t, 8, result.Stats.Summary.Neutral)
	require.NotEmpty(t, result.Product.AnalyzedAt)

	require.Len(t, sink.saved, 1)
	require.Equal(t, "p1", sink.saved[0].ProductID)
}

func TestCompleteAnalysisShortCircuitsOnZeroReviews(t *testing.T) {
	backend := &fakeBackend{
		scrapeReviews: func(req batchRequest) (int, any) {
			return 200, map[string]any{
				"success": true,
				"results": []ScrapeResult{{ProductID: "p1", Reviews: nil}},
			}
		},
		analyzeReviews: func(req batchRequest) (int, any) {
			panic("analyze must not be called when scrape yields no reviews")
		},
	}
	orch, sink := setup(t, backend, "tok")

	_, err := orch.CompleteAnalysis(context.Background(), Product{
		ID:   "p1",
		Link: "https://shop/p1",
	})
	require.ErrorIs(t, err, ErrNoReviews)
	require.Equal(t, "No reviews found to analyze", err.Error())
	require.Empty(t, sink.saved)
	require.Empty(t, backend.analyzeRequests)
}

func TestCompleteAnalysisMapsEmptyBatchToNoReviews(t *testing.T) {
	backend := &fakeBackend{
		scrapeReviews: func(req batchRequest) (int, any) {
			return 200, map[string]any{"success": true, "results": []any{}}
		},
	}
	orch, _ := setup(t, backend, "tok")

	_, err := orch.CompleteAnalysis(context.Background(), Product{
		ID:   "p1",
		Link: "https://shop/p1",
	})
	require.ErrorIs(t, err, ErrNoReviews)
}

func TestProcessProductsIndependentFailures(t *testing.T) {
	backend := &fakeBackend{
		scrapeReviews: scrapeOK(map[string][]Review{
			"p1": reviewsOf(2),
			"p3": reviewsOf(4),
		}),
	}
	orch, _ := setup(t, backend, "tok")

	products := []Product{
		{ID: "p1", Link: "https://shop/p1"},
		{ID: "p2"}, // fails validation, no link
		{ID: "p3", Link: "https://shop/p3"},
	}
	outcomes := orch.ProcessProducts(context.Background(), products, ActionScrape)

	require.Len(t, outcomes, 3)
	require.True(t, outcomes[0].Success())
	require.Equal(t, StageScraped, outcomes[0].Stage)
	require.Len(t, outcomes[0].Scraped.Reviews, 2)

	require.False(t, outcomes[1].Success())
	require.Equal(t, StageScrapeFailed, outcomes[1].Stage)

	// p2's failure did not stop p3 from being processed
	require.True(t, outcomes[2].Success())
	require.Len(t, outcomes[2].Scraped.Reviews, 4)
}

func TestProcessProductsCompletePipeline(t *testing.T) {
	backend := &fakeBackend{
		scrapeReviews: scrapeOK(map[string][]Review{
			"p1": reviewsOf(3),
		}),
		analyzeReviews: analyzeOK(map[string]SentimentSummary{
			"p1": {Positive: 3},
		}),
	}
	orch, sink := setup(t, backend, "tok")

	products := []Product{
		{ID: "p1", Link: "https://shop/p1"},
		{ID: "p2"},
	}
	outcomes := orch.ProcessProducts(context.Background(), products, ActionCompleteAnalysis)

	require.Len(t, outcomes, 2)
	require.Equal(t, StageAnalyzed, outcomes[0].Stage)
	require.Equal(t, 3, outcomes[0].Analysis.Stats.TotalReviews)
	require.Equal(t, StageScrapeFailed, outcomes[1].Stage)
	require.Len(t, sink.saved, 1)
}
