package gqlsparql

import (
	"context"
	"fmt"
	"time"

	"github.com/twinfer/gqlsparql/cache"
	"github.com/twinfer/gqlsparql/compile"
	"github.com/twinfer/gqlsparql/config"
	"github.com/twinfer/gqlsparql/endpoint"
	"github.com/twinfer/gqlsparql/gql"
	"github.com/twinfer/gqlsparql/iri"
	"github.com/twinfer/gqlsparql/jsonld"
	"github.com/twinfer/gqlsparql/querycompile"
	"github.com/twinfer/gqlsparql/serialize"
	"github.com/twinfer/gqlsparql/shape"
)

// QueryCompiler is the swappable contract a Client delegates query
// compilation to. querycompile.BasicCompiler is the one concrete
// implementation this module ships.
type QueryCompiler interface {
	Compile(op *gql.Operation, ctx *jsonld.Context) (*querycompile.Compiled, error)
}

// QueryResponse is the shaped outcome of a successful query call.
type QueryResponse struct {
	Data map[string]any
}

// MutationResponse is the shaped outcome of a successful mutation call:
// success plus the subject IRI the mutation acted on.
type MutationResponse struct {
	Success bool
	Subject string
}

// Client wires the compiler pipeline (gql -> iri -> jsonld ->
// compile/querycompile -> serialize -> endpoint -> shape) to a
// configured SPARQL endpoint. It holds no mutable state beyond its
// cache, so concurrent Query/Mutate calls share nothing else.
type Client struct {
	opts    config.Options
	context *jsonld.Context
	driver  endpoint.Driver
	qc      QueryCompiler
	logger  Logger
	metrics Metrics
	cache   *cache.Cache[*querycompile.Compiled]
}

// New builds a Client from opts and a loaded JSON-LD context, talking to
// driver. queryCompiler may be nil, in which case querycompile.BasicCompiler
// is used. logger/metrics may be nil, in which case logging/metrics calls
// are no-ops — absence never changes behavior.
func New(opts config.Options, ctx *jsonld.Context, driver endpoint.Driver, queryCompiler QueryCompiler, logger Logger, metrics Metrics) (*Client, error) {
	if driver == nil {
		return nil, fmt.Errorf("gqlsparql: New requires a non-nil endpoint.Driver")
	}
	if queryCompiler == nil {
		queryCompiler = querycompile.BasicCompiler{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	var c *cache.Cache[*querycompile.Compiled]
	if opts.CacheEnabled {
		built, err := cache.New[*querycompile.Compiled](opts.CacheMaxEntries, opts.CacheTTL())
		if err != nil {
			return nil, fmt.Errorf("gqlsparql: building cache: %w", err)
		}
		c = built
	}

	return &Client{
		opts:    opts,
		context: ctx,
		driver:  driver,
		qc:      queryCompiler,
		logger:  logger,
		metrics: metrics,
		cache:   c,
	}, nil
}

// Close releases the client's cache resources.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// Query parses, compiles, executes and shapes a GraphQL query operation.
func (c *Client) Query(ctx context.Context, query string) (*QueryResponse, error) {
	compiled, err := c.compileQueryCached(query)
	if err != nil {
		c.metrics.IncCompileError(codeOf(err))
		return nil, newQueryError(err)
	}

	sparql, err := serialize.Project(compiled.Project)
	if err != nil {
		c.metrics.IncCompileError("CONVERSION_ERROR")
		return nil, newQueryError(err)
	}
	if c.opts.ValidateQuery {
		if err := iri.ValidateSPARQLQuery(sparql, iri.QueryValidationOptions{}); err != nil {
			c.metrics.IncCompileError("VALIDATION_ERROR")
			return nil, newQueryError(err)
		}
	}

	start := time.Now()
	var result *endpoint.Result
	if alg, ok := c.driver.(endpoint.AlgebraDriver); ok {
		result, err = alg.ExecuteQuery(ctx, compiled.Project)
	} else {
		result, err = c.driver.Query(ctx, sparql, endpoint.Options{
			Timeout:    c.opts.Timeout(),
			MaxResults: c.opts.MaxResults,
		})
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ObserveEndpointLatency("query", outcome, time.Since(start).Seconds())
	if err != nil {
		c.logger.Error("sparql query failed", Fields{"error": err.Error()})
		return nil, newQueryError(err)
	}

	return &QueryResponse{Data: shape.Shape(result, compiled.Singularize)}, nil
}

// compileQueryCached parses and compiles query, serving a cache hit keyed
// on the raw query text when the cache is enabled.
func (c *Client) compileQueryCached(query string) (*querycompile.Compiled, error) {
	if c.cache != nil {
		if hit, ok := c.cache.Get(query); ok {
			c.metrics.IncCacheHit()
			return hit, nil
		}
		c.metrics.IncCacheMiss()
	}

	start := time.Now()
	op, err := gql.Parse(query)
	if err != nil {
		return nil, err
	}
	compiled, err := c.qc.Compile(op, c.context)
	c.metrics.ObserveCompileLatency("query", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(query, compiled)
	}
	return compiled, nil
}

// Mutate parses, validates, compiles, serializes and executes a GraphQL
// mutation operation.
func (c *Client) Mutate(ctx context.Context, mutation string) (*MutationResponse, error) {
	start := time.Now()
	op, err := gql.Parse(mutation)
	if err != nil {
		c.metrics.IncCompileError(codeOf(err))
		return nil, newMutationError(err)
	}

	result, err := compile.Compile(op, c.context)
	c.metrics.ObserveCompileLatency("mutation", time.Since(start).Seconds())
	if err != nil {
		c.metrics.IncCompileError(codeOf(err))
		return nil, newMutationError(err)
	}

	sparql, err := serialize.CompositeUpdate(result.Update)
	if err != nil {
		c.metrics.IncCompileError("CONVERSION_ERROR")
		return nil, newMutationError(err)
	}

	endpointStart := time.Now()
	var updateResult *endpoint.UpdateResult
	if alg, ok := c.driver.(endpoint.AlgebraDriver); ok {
		updateResult, err = alg.ExecuteUpdate(ctx, result.Update)
	} else {
		updateResult, err = c.driver.Update(ctx, sparql, endpoint.Options{Timeout: c.opts.Timeout()})
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ObserveEndpointLatency("update", outcome, time.Since(endpointStart).Seconds())
	if err != nil {
		c.logger.Error("sparql update failed", Fields{"error": err.Error(), "subject": result.Subject})
		return nil, newMutationError(err)
	}

	return &MutationResponse{Success: updateResult.Success, Subject: result.Subject}, nil
}
