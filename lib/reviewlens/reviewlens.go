// Package reviewlens wires the session manager, request gateway,
// workflow orchestrator and result cache into one constructible
// client. Hosting applications build one per backend and decide
// navigation policy through the auth-expired hook.
package reviewlens

import (
	"context"

	"reviewlens-client/lib/catalog"
	"reviewlens-client/lib/gateway"
	"reviewlens-client/lib/kvstore"
	"reviewlens-client/lib/orchestrator"
	"reviewlens-client/lib/resultcache"
	"reviewlens-client/lib/session"
)

type Options struct {
	BaseUrl string
	// Store backs both session persistence and the result cache.
	// Defaults to an in-memory store.
	Store kvstore.Store
	// OnAuthExpired fires after a 401 already cleared the session;
	// the hosting app typically navigates to its login surface here.
	OnAuthExpired func()
}

type Client struct {
	Session   *session.Manager
	Workflows *orchestrator.Orchestrator
	Catalog   *catalog.Client
	Results   *resultcache.Cache

	api   *gateway.Client
	store kvstore.Store
}

func New(ctx context.Context, opts Options) (*Client, error) {
	store := opts.Store
	if store == nil {
		store = kvstore.NewMemory()
	}

	api, err := gateway.NewClient(ctx, gateway.Options{
		BaseUrl: opts.BaseUrl,
		Store:   store,
	})
	if err != nil {
		return nil, err
	}

	sess := session.NewManager(api, store)
	api.SetTokens(sess)
	api.SetOnAuthExpired(func() {
		// a 401 invalidates the session no matter which operation
		// tripped it
		sess.ClearSession()
		if opts.OnAuthExpired != nil {
			opts.OnAuthExpired()
		}
	})

	results := resultcache.New(store)

	return &Client{
		Session:   sess,
		Workflows: orchestrator.New(api, results),
		Catalog:   catalog.New(api),
		Results:   results,
		api:       api,
		store:     store,
	}, nil
}

func (c *Client) Close() error {
	return c.store.Close()
}
