package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"reviewlens-client/lib/kvstore"
	"reviewlens-client/lib/orchestrator"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("resultcache")

const keyPrefix = "analysis:"

var ErrNotFound = kvstore.ErrNotFound

// Cache persists completed analysis results for offline and history
// views. One logical entry per product id, last write wins; there is
// no TTL and no versioning.
type Cache struct {
	store kvstore.Store
}

func New(store kvstore.Store) *Cache {
	return &Cache{store: store}
}

func key(productId string) string {
	if productId != "" {
		return keyPrefix + productId
	}
	// results without a product id still deserve a slot in history;
	// derive a collision-resistant key from the clock
	suffix, err := random.String(6)
	if err != nil {
		suffix = "x"
	}
	return fmt.Sprintf("%sts%d-%s", keyPrefix, time.Now().UnixNano(), suffix)
}

// Save stores the result under its product id, overwriting any
// earlier entry. Values must be plain serializable data; the JSON
// round trip is the storage contract.
func (c *Cache) Save(ctx context.Context, result orchestrator.AnalysisResult) error {
	ctx, span := tracer.Start(ctx, "Save")
	defer span.End()

	k := key(result.ProductID)
	span.SetAttributes(attribute.KeyValue{
		Key:   "key",
		Value: attribute.StringValue(k),
	})

	raw, err := json.Marshal(result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize result")
		return err
	}
	err = c.store.Set(ctx, k, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write result")
		return err
	}
	return nil
}

// Load returns the stored result for a product id, or ErrNotFound.
func (c *Cache) Load(ctx context.Context, productId string) (orchestrator.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "Load")
	defer span.End()

	raw, err := c.store.Get(ctx, keyPrefix+productId)
	if err != nil {
		return orchestrator.AnalysisResult{}, err
	}

	var result orchestrator.AnalysisResult
	err = json.Unmarshal(raw, &result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize result")
		return orchestrator.AnalysisResult{}, err
	}
	return result, nil
}

// List returns every stored result. Malformed entries are skipped
// with a warning so one corrupt row never hides the rest of the
// history.
func (c *Cache) List(ctx context.Context) ([]orchestrator.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "List")
	defer span.End()

	keys, err := c.store.Keys(ctx, keyPrefix)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enumerate keys")
		return nil, err
	}

	results := make([]orchestrator.AnalysisResult, 0, len(keys))
	for _, k := range keys {
		raw, err := c.store.Get(ctx, k)
		if err != nil {
			slog.WarnContext(ctx, "cached entry disappeared during enumeration",
				"key", k, "err", err)
			continue
		}
		var result orchestrator.AnalysisResult
		err = json.Unmarshal(raw, &result)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed cache entry",
				"key", k, "err", err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}
