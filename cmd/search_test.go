package main

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPrimaryFallbackDecision(t *testing.T) {
	if usePrimaryResults(errors.New("index unavailable"), 0) == true {
		t.Errorf("expected an index failure to defer to the fallback query")
	}

	// a successful index query with zero matches is not authoritative either
	if usePrimaryResults(nil, 0) == true {
		t.Errorf("expected an empty index result to defer to the fallback query")
	}

	if usePrimaryResults(errors.New("index unavailable"), 3) == true {
		t.Errorf("expected an index failure to defer even with partial results")
	}

	if usePrimaryResults(nil, 3) == false {
		t.Errorf("expected a non-empty index result to be authoritative")
	}
}

func TestProductResponseShape(t *testing.T) {
	body, err := json.Marshal(productResponse{Product: &product{ID: "p1"}})
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	if strings.Contains(string(body), `"product":`) == false {
		t.Errorf("expected a wrapped product object, got %s", body)
	}
}

func TestParsePublicationYear(t *testing.T) {
	tests := []struct {
		raw  string
		year int
		ok   bool
	}{
		{"January 1, 1951", 1951, true},
		{"Jan 1, 1951", 1951, true},
		{"2020-06-15", 2020, true},
		{"March 1999", 1999, true},
		{"2008", 2008, true},
		{"sometime last year", 0, false},
		{"", 0, false},
	}

	for _, test := range tests {
		year, ok := parsePublicationYear(test.raw)

		if ok != test.ok || year != test.year {
			t.Errorf("parsePublicationYear(%q): expected (%d, %v), got (%d, %v)", test.raw, test.year, test.ok, year, ok)
		}
	}
}

func TestFilterProductsByYear(t *testing.T) {
	products := []product{
		{ID: "a", PublicationDate: "January 1, 2020"},
		{ID: "b", PublicationDate: "January 1, 2021"},
		{ID: "c", PublicationDate: "unknown"},
		{ID: "d"},
	}

	kept := filterProductsByYear(products, []int{2020})

	if len(kept) != 1 || kept[0].ID != "a" {
		t.Errorf("expected only the 2020 product, got %v", kept)
	}

	// no year selection passes everything through untouched
	if len(filterProductsByYear(products, nil)) != len(products) {
		t.Errorf("expected no filtering without a year selection")
	}
}

func TestIDLookupFilterOrder(t *testing.T) {
	// a non-hex id skips the document-store identifier strategy
	filters := idLookupFilters("not-a-hex-id")

	expected := []bson.M{
		{fieldExternalID: "not-a-hex-id"},
		{"_id": "not-a-hex-id"},
		{fieldASIN: "not-a-hex-id"},
	}

	if reflect.DeepEqual(filters, expected) == false {
		t.Errorf("unexpected lookup order: %v", filters)
	}
}

func TestIDLookupFilterOrderHex(t *testing.T) {
	oid := primitive.NewObjectID()
	hex := oid.Hex()

	filters := idLookupFilters(hex)

	expected := []bson.M{
		{fieldExternalID: hex},
		{"_id": oid},
		{"_id": hex},
		{fieldASIN: hex},
	}

	if reflect.DeepEqual(filters, expected) == false {
		t.Errorf("unexpected lookup order: %v", filters)
	}
}
