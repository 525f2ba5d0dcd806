package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type searchContext struct {
	svc      *serviceContext
	client   *clientContext
	filters  productFilters
	compiled compiledQuery
}

type searchResponse struct {
	status int         // http status code
	data   interface{} // data to return as JSON
	err    error       // error, if any
}

type productsResponse struct {
	Products []product `json:"products"`
}

type productResponse struct {
	Product *product `json:"product"`
}

func (s *searchContext) init(p *serviceContext, c *clientContext) {
	s.svc = p
	s.client = c
}

func (s *searchContext) log(format string, args ...interface{}) {
	s.client.log(format, args...)
}

func (s *searchContext) err(format string, args ...interface{}) {
	s.client.err(format, args...)
}

func (s *searchContext) queryContext() (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.svc.mongo.readTimeout) * time.Second
	return context.WithTimeout(s.client.ginCtx.Request.Context(), timeout)
}

// layouts attempted when parsing the free-text publication date field
var pubDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"January 2006",
	"2006",
}

func parsePublicationYear(raw string) (int, bool) {
	for _, layout := range pubDateLayouts {
		if date, err := time.Parse(layout, raw); err == nil {
			return date.Year(), true
		}
	}

	return 0, false
}

// filterProductsByYear keeps products whose publication date parses to one
// of the selected years.  unparseable dates are excluded while a year
// filter is active.
func filterProductsByYear(products []product, years []int) []product {
	if len(years) == 0 {
		return products
	}

	kept := []product{}

	for _, p := range products {
		year, ok := parsePublicationYear(p.PublicationDate)
		if ok == false {
			continue
		}

		if intSliceContains(years, year) == true {
			kept = append(kept, p)
		}
	}

	return kept
}

func (s *searchContext) runSearchPipeline(ctx context.Context) ([]catalogDocument, error) {
	pipeline := buildSearchPipeline(s.compiled, s.svc.mongo.resultLimit)

	if s.client.opts.verbose == true {
		s.log("[MONGO] search pipeline: %v", pipeline)
	}

	start := time.Now()

	cursor, err := s.svc.mongo.products.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var docs []catalogDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	elapsedMS := int64(time.Since(start) / time.Millisecond)
	s.log("[MONGO] search index query: %d doc(s) in %d (ms)", len(docs), elapsedMS)

	return docs, nil
}

func (s *searchContext) runFallbackQuery(ctx context.Context) ([]catalogDocument, error) {
	if s.client.opts.verbose == true {
		s.log("[MONGO] fallback query: %v", s.compiled.fallback)
	}

	start := time.Now()

	opts := options.Find().
		SetSort(buildSort()).
		SetLimit(int64(s.svc.mongo.resultLimit))

	cursor, err := s.svc.mongo.products.Find(ctx, s.compiled.fallback, opts)
	if err != nil {
		return nil, err
	}

	var docs []catalogDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	elapsedMS := int64(time.Since(start) / time.Millisecond)
	s.log("[MONGO] fallback query: %d doc(s) in %d (ms)", len(docs), elapsedMS)

	return docs, nil
}

// usePrimaryResults reports whether the primary index query outcome is
// authoritative.  an index failure or an empty result both defer to the
// structured fallback query.
func usePrimaryResults(err error, docCount int) bool {
	return err == nil && docCount > 0
}

// fetchProducts runs the primary search index query, falling back to the
// structured query when the index fails or returns nothing.  an index
// failure is logged and swallowed; only a fallback failure propagates.
// the year post-filter applies after the fallback decision, so a year
// selection can empty the primary result without re-querying.
func (s *searchContext) fetchProducts(ctx context.Context) ([]product, error) {
	if s.compiled.searchStage != nil {
		docs, err := s.runSearchPipeline(ctx)

		if usePrimaryResults(err, len(docs)) == true {
			return filterProductsByYear(mapProducts(docs), s.compiled.postYears), nil
		}

		if err != nil {
			s.err("search index query failed, using fallback: %s", err.Error())
		} else {
			s.log("[SEARCH] index returned no matches; re-running as structured query")
		}
	}

	docs, err := s.runFallbackQuery(ctx)
	if err != nil {
		return nil, err
	}

	return mapProducts(docs), nil
}

func (s *searchContext) handleProductsRequest() searchResponse {
	s.filters = parseProductFilters(s.client.ginCtx)
	s.compiled = compileFilters(s.filters, s.svc.mongo.searchIndex)

	ctx, cancel := s.queryContext()
	defer cancel()

	products, err := s.fetchProducts(ctx)
	if err != nil {
		s.err("products query failed: %s", err.Error())
		return searchResponse{status: http.StatusInternalServerError, err: errors.New(s.client.localize("ProductsError"))}
	}

	return searchResponse{status: http.StatusOK, data: productsResponse{Products: products}}
}

// idLookupFilters builds the ordered list of identity lookups for a single
// product: explicit id field, document-store identifier, raw identifier
// string, then third-party catalog identifier.  order is significant; none
// of these keys are unique-enforced by the store.
func idLookupFilters(id string) []bson.M {
	filters := []bson.M{
		{fieldExternalID: id},
	}

	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		filters = append(filters, bson.M{"_id": oid})
	}

	filters = append(filters,
		bson.M{"_id": id},
		bson.M{fieldASIN: id},
	)

	return filters
}

func (s *searchContext) fetchProductByID(ctx context.Context, id string) (*product, error) {
	for _, filter := range idLookupFilters(id) {
		var doc catalogDocument

		err := s.svc.mongo.products.FindOne(ctx, filter).Decode(&doc)

		if err == nil {
			p := mapProduct(doc)
			return &p, nil
		}

		if errors.Is(err, mongo.ErrNoDocuments) == false {
			return nil, err
		}
	}

	return nil, nil
}

func (s *searchContext) handleProductRequest() searchResponse {
	id := s.client.ginCtx.Param("id")

	ctx, cancel := s.queryContext()
	defer cancel()

	p, err := s.fetchProductByID(ctx, id)
	if err != nil {
		s.err("product lookup failed: %s", err.Error())
		return searchResponse{status: http.StatusInternalServerError, err: errors.New(s.client.localize("ProductError"))}
	}

	if p == nil {
		return searchResponse{status: http.StatusNotFound, err: errors.New(s.client.localize("ProductNotFound"))}
	}

	return searchResponse{status: http.StatusOK, data: productResponse{Product: p}}
}

func (s *searchContext) handlePingRequest() searchResponse {
	ctx, cancel := s.queryContext()
	defer cancel()

	if err := s.svc.mongo.client.Ping(ctx, nil); err != nil {
		return searchResponse{status: http.StatusInternalServerError, err: err}
	}

	return searchResponse{status: http.StatusOK}
}
