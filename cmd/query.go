package main

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// functions that compile client filter requests into mongo queries.
//
// every request compiles to two forms: a primary full-text query against
// the managed search index, and a structured match usable directly against
// the collection when the index is unavailable or returns nothing.

// fields covered by free-text search, in both query forms
var searchTextFields = []string{fieldTitle, fieldDescription, fieldEntities, fieldPublisher}

type compiledQuery struct {
	searchStage bson.D // $search aggregation stage; nil when the full-text path is skipped
	postYears   []int  // year selections applied after index retrieval
	fallback    bson.M // structured match against the collection
}

func compileFilters(filters productFilters, index string) compiledQuery {
	compiled := compiledQuery{
		fallback: buildFallbackQuery(filters),
	}

	// no search text and no real facet selections: the structured
	// query is the sole path
	if filters.hasSearch() == false && filters.facets.active() == false {
		return compiled
	}

	compiled.searchStage = buildSearchStage(filters, index)
	compiled.postYears = parseYears(filters.facets.pubYears)

	return compiled
}

// missingFieldOperator matches documents where the field is absent or blank,
// expressed as a search index operator
func missingFieldOperator(field string) bson.M {
	return bson.M{
		"compound": bson.M{
			"should": bson.A{
				bson.M{"compound": bson.M{
					"mustNot": bson.A{
						bson.M{"exists": bson.M{"path": field}},
					},
				}},
				bson.M{"equals": bson.M{"path": field, "value": ""}},
			},
			"minimumShouldMatch": 1,
		},
	}
}

// facetTextOperator builds the index clause for one string facet: match any
// selected value, honoring the empty-string "missing or blank" sentinel
func facetTextOperator(field string, vals []string) bson.M {
	values := nonblankValues(vals)
	includeMissing := hasBlankValue(vals)

	var textClause bson.M
	if len(values) > 0 {
		textClause = bson.M{"text": bson.M{"query": values, "path": field}}
	}

	switch {
	case textClause != nil && includeMissing == true:
		return bson.M{
			"compound": bson.M{
				"should":             bson.A{textClause, missingFieldOperator(field)},
				"minimumShouldMatch": 1,
			},
		}

	case textClause != nil:
		return textClause

	case includeMissing == true:
		return missingFieldOperator(field)
	}

	return nil
}

// buildSearchStage compiles the primary $search stage.  publication year is
// not expressible against the index (it lives in a free-text date field) and
// is applied as a post-filter instead.  returns nil when nothing remains to
// query the index for.
func buildSearchStage(filters productFilters, index string) bson.D {
	var must bson.A

	if filters.hasSearch() == true {
		must = append(must, bson.M{
			"text": bson.M{
				"query": filters.search,
				"path":  searchTextFields,
			},
		})
	}

	stringFacets := []struct {
		field string
		vals  []string
	}{
		{fieldPublisher, filters.facets.publisher},
		{fieldLanguage, filters.facets.language},
		{fieldEdition, filters.facets.edition},
	}

	for _, facet := range stringFacets {
		if clause := facetTextOperator(facet.field, facet.vals); clause != nil {
			must = append(must, clause)
		}
	}

	if len(must) == 0 {
		return nil
	}

	return bson.D{{Key: "$search", Value: bson.M{
		"index":    index,
		"compound": bson.M{"must": must},
	}}}
}

// buildTextMatch builds the degraded free-text query: case-insensitive
// regex OR-matching across the search fields.  no relevance ranking, no
// tokenization; this is deliberate.
func buildTextMatch(search string) bson.M {
	query := bson.M{}

	if search == "" {
		return query
	}

	regex := primitive.Regex{Pattern: search, Options: "i"}

	var or bson.A
	for _, field := range searchTextFields {
		or = append(or, bson.M{field: regex})
	}

	query["$or"] = or

	return query
}

// stringFacetClause builds the structured predicate for one string facet.
// returns nil when the facet imposes no constraint.
func stringFacetClause(field string, vals []string) bson.M {
	values := nonblankValues(vals)
	includeMissing := hasBlankValue(vals)

	missing := bson.M{"$or": bson.A{
		bson.M{field: bson.M{"$exists": false}},
		bson.M{field: nil},
		bson.M{field: ""},
	}}

	switch {
	case len(values) > 0 && includeMissing == true:
		return bson.M{"$or": bson.A{
			bson.M{field: bson.M{"$in": values}},
			bson.M{field: bson.M{"$exists": false}},
			bson.M{field: nil},
			bson.M{field: ""},
		}}

	case len(values) > 0:
		return bson.M{field: bson.M{"$in": values}}

	case includeMissing == true:
		return missing
	}

	return nil
}

// yearClause matches documents whose free-text publication date parses to
// one of the selected years.  parse failures evaluate to null and are
// therefore excluded, consistent with the best-effort filter policy.
func yearClause(years []int) bson.M {
	return bson.M{"$expr": bson.M{
		"$in": bson.A{
			bson.M{"$year": bson.M{"$dateFromString": bson.M{
				"dateString": "$" + fieldPubDate,
				"onError":    nil,
				"onNull":     nil,
			}}},
			years,
		},
	}}
}

// buildFacetMatch composes facet predicates: AND across facets, OR within
// a facet's selected values
func buildFacetMatch(facets facetSelections) []bson.M {
	var clauses []bson.M

	if clause := stringFacetClause(fieldPublisher, facets.publisher); clause != nil {
		clauses = append(clauses, clause)
	}

	if clause := stringFacetClause(fieldLanguage, facets.language); clause != nil {
		clauses = append(clauses, clause)
	}

	if clause := stringFacetClause(fieldEdition, facets.edition); clause != nil {
		clauses = append(clauses, clause)
	}

	if years := parseYears(facets.pubYears); len(years) > 0 {
		clauses = append(clauses, yearClause(years))
	}

	return clauses
}

func buildFallbackQuery(filters productFilters) bson.M {
	query := buildTextMatch(filters.search)

	if clauses := buildFacetMatch(filters.facets); len(clauses) > 0 {
		query["$and"] = clauses
	}

	return query
}

func buildSort() bson.D {
	return bson.D{{Key: "_id", Value: -1}}
}

func buildSearchPipeline(compiled compiledQuery, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		compiled.searchStage,
		bson.D{{Key: "$sort", Value: buildSort()}},
		bson.D{{Key: "$limit", Value: limit}},
	}
}
