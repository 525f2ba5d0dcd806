package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// facet aggregation over the current search text, driving the client's
// available-filter-options display.  independent of any facet selections.

type facetBucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type facetGroup struct {
	Buckets []facetBucket `json:"buckets"`
}

type facetGroups struct {
	Publisher *facetGroup `json:"publisher,omitempty"`
	Language  *facetGroup `json:"language,omitempty"`
	Edition   *facetGroup `json:"edition,omitempty"`
	PubDate   *facetGroup `json:"pubDate,omitempty"`
}

type facetSummary struct {
	Count  int         `json:"count"`
	Facets facetGroups `json:"facets"`
}

type facetsResponse struct {
	Facets facetSummary `json:"facets"`
}

type searchMetaBucket struct {
	ID    interface{} `json:"_id"`
	Value interface{} `json:"value"`
	Count int         `json:"count"`
}

type searchMetaFacet struct {
	Buckets []searchMetaBucket `json:"buckets"`
}

func stringifyFacetValue(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case primitive.DateTime:
		// date facet buckets are year boundaries; expose just the year
		return strconv.Itoa(v.Time().UTC().Year())
	case time.Time:
		return strconv.Itoa(v.UTC().Year())
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int32:
		return strconv.Itoa(int(v))
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	}

	return fmt.Sprintf("%v", val)
}

func normalizeBuckets(buckets []searchMetaBucket) []facetBucket {
	normalized := []facetBucket{}

	for _, bucket := range buckets {
		val := bucket.Value
		if val == nil {
			val = bucket.ID
		}

		normalized = append(normalized, facetBucket{
			Value: stringifyFacetValue(val),
			Count: bucket.Count,
		})
	}

	return normalized
}

// searchMetaPipeline builds the index-backed metadata aggregation: bucketed
// counts per facet field for the current search text
func searchMetaPipeline(search string, index string) mongo.Pipeline {
	operator := bson.M{"exists": bson.M{"path": fieldTitle}}

	if search != "" {
		operator = bson.M{"text": bson.M{
			"query": search,
			"path":  searchTextFields,
		}}
	}

	return mongo.Pipeline{
		bson.D{{Key: "$searchMeta", Value: bson.M{
			"index": index,
			"facet": bson.M{
				"operator": operator,
				"facets": bson.M{
					"publisher": bson.M{"type": "string", "path": fieldPublisher},
					"language":  bson.M{"type": "string", "path": fieldLanguage},
					"edition":   bson.M{"type": "string", "path": fieldEdition},
					"pubDate":   bson.M{"type": "date", "path": fieldPubDate, "granularity": "year"},
				},
			},
		}}},
	}
}

// convertMetaFacets converts the raw $searchMeta result to internal
// structures.  due to its shape we cannot decode it directly into structs
// (named facet blocks sit alongside a "count" block), so we strip
// non-facet keys and decode the remaining map with mapstructure.
func convertMetaFacets(raw bson.M) (int, map[string]searchMetaFacet, error) {
	count := 0

	switch val := raw["count"].(type) {
	case bson.M:
		if total, ok := catalogDocument(val).floatValue("total"); ok == true {
			count = int(total)
		} else if lower, ok := catalogDocument(val).floatValue("lowerBound"); ok == true {
			count = int(lower)
		}
	case map[string]interface{}:
		if total, ok := catalogDocument(val).floatValue("total"); ok == true {
			count = int(total)
		} else if lower, ok := catalogDocument(val).floatValue("lowerBound"); ok == true {
			count = int(lower)
		}
	default:
		if num, ok := catalogDocument(raw).floatValue("count"); ok == true {
			count = int(num)
		}
	}

	// facet blocks live under "facet" (or "facets" from older index versions)
	blocks, ok := raw["facet"].(bson.M)
	if ok == false {
		blocks, _ = raw["facets"].(bson.M)
	}

	facetsRaw := make(map[string]interface{})

	for key, val := range blocks {
		switch val.(type) {
		case bson.M, map[string]interface{}:
			facetsRaw[key] = val
		}
	}

	var facets map[string]searchMetaFacet

	cfg := &mapstructure.DecoderConfig{
		Metadata:   nil,
		Result:     &facets,
		TagName:    "json",
		ZeroFields: true,
	}

	dec, _ := mapstructure.NewDecoder(cfg)

	if mapDecErr := dec.Decode(facetsRaw); mapDecErr != nil {
		return 0, nil, fmt.Errorf("failed to decode search meta facet map: %s", mapDecErr.Error())
	}

	return count, facets, nil
}

func assembleFacetSummary(count int, facets map[string]searchMetaFacet) *facetSummary {
	summary := facetSummary{Count: count}

	if f, ok := facets["publisher"]; ok == true {
		summary.Facets.Publisher = &facetGroup{Buckets: normalizeBuckets(f.Buckets)}
	}

	if f, ok := facets["language"]; ok == true {
		summary.Facets.Language = &facetGroup{Buckets: normalizeBuckets(f.Buckets)}
	}

	if f, ok := facets["edition"]; ok == true {
		summary.Facets.Edition = &facetGroup{Buckets: normalizeBuckets(f.Buckets)}
	}

	if f, ok := facets["pubDate"]; ok == true {
		summary.Facets.PubDate = &facetGroup{Buckets: normalizeBuckets(f.Buckets)}
	}

	return &summary
}

func (s *searchContext) runMetaFacets(ctx context.Context, search string) (*facetSummary, error) {
	pipeline := searchMetaPipeline(search, s.svc.mongo.searchIndex)

	if s.client.opts.verbose == true {
		s.log("[MONGO] searchMeta pipeline: %v", pipeline)
	}

	cursor, err := s.svc.mongo.products.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &facetSummary{}, nil
	}

	count, facets, err := convertMetaFacets(results[0])
	if err != nil {
		return nil, err
	}

	return assembleFacetSummary(count, facets), nil
}

// stringFacetPipeline groups and counts one facet field directly against
// the collection: the degraded path when the search index is unavailable
func stringFacetPipeline(match bson.M, field string, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}
}

// dateFacetPipeline parses the free-text publication date, extracts the
// year, and groups/counts by year descending
func dateFacetPipeline(match bson.M, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$addFields", Value: bson.M{"_pubDate": bson.M{"$dateFromString": bson.M{
			"dateString": "$" + fieldPubDate,
			"onError":    nil,
			"onNull":     nil,
		}}}}},
		bson.D{{Key: "$match", Value: bson.M{"_pubDate": bson.M{"$ne": nil}}}},
		bson.D{{Key: "$addFields", Value: bson.M{"_year": bson.M{"$year": "$_pubDate"}}}},
		bson.D{{Key: "$group", Value: bson.M{"_id": "$_year", "count": bson.M{"$sum": 1}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}
}

func (s *searchContext) runFacetPipeline(ctx context.Context, pipeline mongo.Pipeline) ([]facetBucket, error) {
	cursor, err := s.svc.mongo.products.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID    interface{} `bson:"_id"`
		Count int         `bson:"count"`
	}

	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	buckets := []facetBucket{}

	for _, row := range rows {
		buckets = append(buckets, facetBucket{
			Value: stringifyFacetValue(row.ID),
			Count: row.Count,
		})
	}

	return buckets, nil
}

// fallbackFacets independently groups and counts each facet field.  the
// four aggregations have no ordering dependency and run concurrently.
func (s *searchContext) fallbackFacets(ctx context.Context, search string) (*facetSummary, error) {
	match := buildTextMatch(search)
	limit := s.svc.mongo.facetLimit

	pipelines := []mongo.Pipeline{
		stringFacetPipeline(match, fieldPublisher, limit),
		stringFacetPipeline(match, fieldLanguage, limit),
		stringFacetPipeline(match, fieldEdition, limit),
		dateFacetPipeline(match, limit),
	}

	groups := make([]facetGroup, len(pipelines))
	errs := make([]error, len(pipelines))

	var wg sync.WaitGroup

	for i := range pipelines {
		wg.Add(1)

		go func(slot int) {
			defer wg.Done()

			buckets, err := s.runFacetPipeline(ctx, pipelines[slot])

			groups[slot] = facetGroup{Buckets: buckets}
			errs[slot] = err
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	summary := facetSummary{}
	summary.Facets.Publisher = &groups[0]
	summary.Facets.Language = &groups[1]
	summary.Facets.Edition = &groups[2]
	summary.Facets.PubDate = &groups[3]

	return &summary, nil
}

// aggregateFacets computes facet buckets via the search index, with a
// structured fallback on hard failure only.  a successful index
// aggregation with zero buckets is authoritative here, unlike the product
// query path.
func (s *searchContext) aggregateFacets(ctx context.Context, search string) (*facetSummary, error) {
	summary, err := s.runMetaFacets(ctx, search)
	if err == nil {
		return summary, nil
	}

	s.err("facet index aggregation failed, using fallback: %s", err.Error())

	return s.fallbackFacets(ctx, search)
}

func (s *searchContext) handleFacetsRequest() searchResponse {
	search := strings.TrimSpace(s.client.ginCtx.Query("search"))

	ctx, cancel := s.queryContext()
	defer cancel()

	summary, err := s.aggregateFacets(ctx, search)
	if err != nil {
		s.err("facets query failed: %s", err.Error())
		return searchResponse{status: http.StatusInternalServerError, err: errors.New(s.client.localize("FacetsError"))}
	}

	return searchResponse{status: http.StatusOK, data: facetsResponse{Facets: *summary}}
}
