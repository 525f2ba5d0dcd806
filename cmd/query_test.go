package main

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

const testIndex = "default"

func facetAndClauses(t *testing.T, query bson.M) []bson.M {
	t.Helper()

	val, ok := query["$and"]
	if ok == false {
		t.Fatalf("expected $and clauses in query: %v", query)
	}

	clauses, ok := val.([]bson.M)
	if ok == false {
		t.Fatalf("unexpected $and clause type: %T", val)
	}

	return clauses
}

func TestEmptyFacetMeansAll(t *testing.T) {
	selected := productFilters{
		search: "foundation",
		facets: facetSelections{publisher: []string{}},
	}

	unselected := productFilters{search: "foundation"}

	if reflect.DeepEqual(buildFallbackQuery(selected), buildFallbackQuery(unselected)) == false {
		t.Errorf("expected an empty facet selection to compile identically to no selection")
	}

	if _, ok := buildFallbackQuery(selected)["$and"]; ok == true {
		t.Errorf("expected no facet constraint for an empty selection")
	}
}

func TestFacetAndOrInvariant(t *testing.T) {
	filters := productFilters{
		facets: facetSelections{
			publisher: []string{"A", "B"},
			language:  []string{"X"},
		},
	}

	clauses := facetAndClauses(t, buildFallbackQuery(filters))

	if len(clauses) != 2 {
		t.Fatalf("expected 2 facet clauses, got %d", len(clauses))
	}

	expectedPublisher := bson.M{fieldPublisher: bson.M{"$in": []string{"A", "B"}}}
	if reflect.DeepEqual(clauses[0], expectedPublisher) == false {
		t.Errorf("unexpected publisher clause: %v", clauses[0])
	}

	expectedLanguage := bson.M{fieldLanguage: bson.M{"$in": []string{"X"}}}
	if reflect.DeepEqual(clauses[1], expectedLanguage) == false {
		t.Errorf("unexpected language clause: %v", clauses[1])
	}
}

func TestEmptySentinelPublisher(t *testing.T) {
	filters := productFilters{
		facets: facetSelections{
			publisher: []string{"Penguin", ""},
		},
	}

	clauses := facetAndClauses(t, buildFallbackQuery(filters))

	if len(clauses) != 1 {
		t.Fatalf("expected 1 facet clause, got %d", len(clauses))
	}

	or, ok := clauses[0]["$or"].(bson.A)
	if ok == false {
		t.Fatalf("expected sentinel selection to compile to $or: %v", clauses[0])
	}

	expected := bson.A{
		bson.M{fieldPublisher: bson.M{"$in": []string{"Penguin"}}},
		bson.M{fieldPublisher: bson.M{"$exists": false}},
		bson.M{fieldPublisher: nil},
		bson.M{fieldPublisher: ""},
	}

	if reflect.DeepEqual(or, expected) == false {
		t.Errorf("unexpected sentinel clause: %v", or)
	}
}

func TestEmptySentinelOnly(t *testing.T) {
	clause := stringFacetClause(fieldPublisher, []string{""})

	expected := bson.M{"$or": bson.A{
		bson.M{fieldPublisher: bson.M{"$exists": false}},
		bson.M{fieldPublisher: nil},
		bson.M{fieldPublisher: ""},
	}}

	if reflect.DeepEqual(clause, expected) == false {
		t.Errorf("unexpected sentinel-only clause: %v", clause)
	}
}

func TestUnparseableYearsDropped(t *testing.T) {
	filters := productFilters{
		facets: facetSelections{pubYears: []string{"abc", "199x"}},
	}

	if _, ok := buildFallbackQuery(filters)["$and"]; ok == true {
		t.Errorf("expected unparseable years to impose no constraint")
	}

	filters.facets.pubYears = []string{"2020", "abc"}

	clauses := facetAndClauses(t, buildFallbackQuery(filters))

	if len(clauses) != 1 {
		t.Fatalf("expected 1 facet clause, got %d", len(clauses))
	}

	if _, ok := clauses[0]["$expr"]; ok == false {
		t.Errorf("expected a year expression clause: %v", clauses[0])
	}
}

func TestSearchStageSkippedWithoutFilters(t *testing.T) {
	compiled := compileFilters(productFilters{}, testIndex)

	if compiled.searchStage != nil {
		t.Errorf("expected no search stage for an unfiltered request")
	}
}

func TestSearchStageOmitsYears(t *testing.T) {
	filters := productFilters{
		search: "foundation",
		facets: facetSelections{pubYears: []string{"2020", "2021"}},
	}

	compiled := compileFilters(filters, testIndex)

	if compiled.searchStage == nil {
		t.Fatalf("expected a search stage")
	}

	if reflect.DeepEqual(compiled.postYears, []int{2020, 2021}) == false {
		t.Errorf("expected years as post-filter, got %v", compiled.postYears)
	}

	// the year selection must not appear in the index query
	stage := compiled.searchStage[0].Value.(bson.M)
	must := stage["compound"].(bson.M)["must"].(bson.A)

	if len(must) != 1 {
		t.Errorf("expected only the text clause in the index query, got %v", must)
	}
}

func TestFacetTextOperator(t *testing.T) {
	if clause := facetTextOperator(fieldLanguage, nil); clause != nil {
		t.Errorf("expected no clause for an empty selection, got %v", clause)
	}

	clause := facetTextOperator(fieldLanguage, []string{"English", "Spanish"})

	expected := bson.M{"text": bson.M{"query": []string{"English", "Spanish"}, "path": fieldLanguage}}
	if reflect.DeepEqual(clause, expected) == false {
		t.Errorf("unexpected facet text clause: %v", clause)
	}

	// sentinel plus real values compiles to an OR of the two
	clause = facetTextOperator(fieldPublisher, []string{"Penguin", ""})

	compound, ok := clause["compound"].(bson.M)
	if ok == false {
		t.Fatalf("expected a compound clause: %v", clause)
	}

	if compound["minimumShouldMatch"] != 1 {
		t.Errorf("expected minimumShouldMatch of 1: %v", compound)
	}

	should, ok := compound["should"].(bson.A)
	if ok == false || len(should) != 2 {
		t.Errorf("expected two should clauses: %v", compound["should"])
	}
}

func TestBuildTextMatchFields(t *testing.T) {
	query := buildTextMatch("asimov")

	or, ok := query["$or"].(bson.A)
	if ok == false {
		t.Fatalf("expected $or query: %v", query)
	}

	if len(or) != len(searchTextFields) {
		t.Errorf("expected %d regex clauses, got %d", len(searchTextFields), len(or))
	}

	if len(buildTextMatch("")) != 0 {
		t.Errorf("expected empty query for empty search text")
	}
}
