package catalog

import (
	"context"
	"fmt"
	"net/url"

	"reviewlens-client/lib/gateway"
	"reviewlens-client/lib/orchestrator"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("catalog")

// Client covers the product-catalog side of the backend: discovering
// products by category, persisting curated sets, and polling
// long-running scrape jobs.
type Client struct {
	api *gateway.Client
}

func New(api *gateway.Client) *Client {
	return &Client{api: api}
}

type scrapeProductsRequest struct {
	Category    string `json:"category"`
	MaxProducts int    `json:"max_products"`
}

type productsResponse struct {
	Success  bool                   `json:"success"`
	Products []orchestrator.Product `json:"products"`
	Error    string                 `json:"error"`
}

// ScrapeProducts asks the backend to discover products in a category.
// Protected; the auth gate runs before any network call.
func (c *Client) ScrapeProducts(ctx context.Context, category string, maxProducts int) ([]orchestrator.Product, error) {
	ctx, span := tracer.Start(ctx, "ScrapeProducts")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "category",
		Value: attribute.StringValue(category),
	})

	err := c.api.EnsureAuthenticated()
	if err != nil {
		return nil, err
	}
	if category == "" {
		return nil, &gateway.ValidationError{Message: "A category is required."}
	}

	var res productsResponse
	err = c.api.Post(ctx, "/scrape-products", scrapeProductsRequest{
		Category:    category,
		MaxProducts: maxProducts,
	}, &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape-products failed")
		return nil, err
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Product scraping failed."
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return res.Products, nil
}

// SaveProducts persists a product set server-side. Protected.
func (c *Client) SaveProducts(ctx context.Context, products []orchestrator.Product) error {
	ctx, span := tracer.Start(ctx, "SaveProducts")
	defer span.End()

	err := c.api.EnsureAuthenticated()
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return &gateway.ValidationError{Message: "There are no products to save."}
	}

	err = c.api.Post(ctx, "/save-products", map[string]any{
		"products": products,
	}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save-products failed")
		return err
	}
	return nil
}

// Products lists saved products, optionally narrowed to a category.
// Public, no auth gate.
func (c *Client) Products(ctx context.Context, category string) ([]orchestrator.Product, error) {
	ctx, span := tracer.Start(ctx, "Products")
	defer span.End()

	endpoint := "/products"
	if category != "" {
		endpoint = "/products/" + url.PathEscape(category)
	}

	var res productsResponse
	err := c.api.Get(ctx, endpoint, &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list products")
		return nil, err
	}
	return res.Products, nil
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Categories")
	defer span.End()

	var res categoriesResponse
	err := c.api.Get(ctx, "/categories", &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list categories")
		return nil, err
	}
	return res.Categories, nil
}

type JobStatus struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// JobStatus polls a long-running backend job. Polling cadence is the
// caller's business; this is a single read.
func (c *Client) JobStatus(ctx context.Context, jobId string) (JobStatus, error) {
	ctx, span := tracer.Start(ctx, "JobStatus")
	defer span.End()

	if jobId == "" {
		return JobStatus{}, &gateway.ValidationError{Message: "A job id is required."}
	}

	var status JobStatus
	err := c.api.Get(ctx, "/status/"+url.PathEscape(jobId), &status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to poll job status")
		return JobStatus{}, err
	}
	return status, nil
}

// Health probes backend liveness.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Health")
	defer span.End()

	err := c.api.Get(ctx, "/health", nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend unhealthy")
		return err
	}
	return nil
}
