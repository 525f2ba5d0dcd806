package main

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		raw    string
		rating float64
		count  int
	}{
		{"4.5 out of 5 stars, 1,234 ratings", 4.5, 1234},
		{"4.5 out of 5 stars", 4.5, 0},
		{"", 0, 0},
		{"no numbers here", 0, 0},
		{"3 out of 5 stars, 42 ratings", 3, 5},
	}

	for _, test := range tests {
		rating, count := parseRating(test.raw)

		if rating != test.rating {
			t.Errorf("parseRating(%q): expected rating %v, got %v", test.raw, test.rating, rating)
		}

		if count != test.count {
			t.Errorf("parseRating(%q): expected review count %v, got %v", test.raw, test.count, count)
		}
	}
}

func TestNormalizeCategoryChain(t *testing.T) {
	doc := catalogDocument{
		fieldEntities:  []interface{}{"Asimov", "Clarke"},
		fieldPublisher: "Penguin",
	}

	if category := normalizeCategory(doc); category != "Asimov" {
		t.Errorf("expected first entity as category, got [%s]", category)
	}

	doc = catalogDocument{fieldPublisher: "Penguin"}

	if category := normalizeCategory(doc); category != "Penguin" {
		t.Errorf("expected publisher as category, got [%s]", category)
	}

	doc = catalogDocument{}

	if category := normalizeCategory(doc); category != defaultCategory {
		t.Errorf("expected default category, got [%s]", category)
	}

	doc = catalogDocument{
		fieldCategory:  "Science Fiction",
		fieldEntities:  []interface{}{"Asimov"},
		fieldPublisher: "Penguin",
	}

	if category := normalizeCategory(doc); category != "Science Fiction" {
		t.Errorf("expected explicit category to win, got [%s]", category)
	}
}

func TestMapProductDefaults(t *testing.T) {
	oid := primitive.NewObjectID()

	doc := catalogDocument{
		"_id":      oid,
		fieldTitle: "Foundation",
	}

	p := mapProduct(doc)

	if p.ID != oid.Hex() {
		t.Errorf("expected document identifier as id, got [%s]", p.ID)
	}

	if p.Description != defaultDescription {
		t.Errorf("expected placeholder description, got [%s]", p.Description)
	}

	if p.ImageURL != defaultImagePath {
		t.Errorf("expected placeholder image, got [%s]", p.ImageURL)
	}

	if p.InStock != true {
		t.Errorf("expected in_stock to default to true")
	}

	if p.OriginalPrice != nil {
		t.Errorf("expected nil original price, got %v", *p.OriginalPrice)
	}

	if p.Entities == nil || len(p.Entities) != 0 {
		t.Errorf("expected empty entities list, got %v", p.Entities)
	}

	if p.Rating != 0 || p.ReviewCount != 0 {
		t.Errorf("expected zero rating/review count, got %v/%v", p.Rating, p.ReviewCount)
	}
}

func TestMapProductExternalID(t *testing.T) {
	doc := catalogDocument{
		"_id":           primitive.NewObjectID(),
		fieldExternalID: "ext-123",
	}

	if p := mapProduct(doc); p.ID != "ext-123" {
		t.Errorf("expected external id to win, got [%s]", p.ID)
	}
}

func TestMapProductIdempotent(t *testing.T) {
	doc := catalogDocument{
		"_id":           primitive.NewObjectID(),
		fieldTitle:      "Foundation",
		fieldPublisher:  "Penguin",
		fieldReviews:    "4.5 out of 5 stars, 1,234 ratings",
		fieldEntities:   []interface{}{"Asimov"},
		fieldPrice:      float64(9.99),
		fieldInStock:    false,
		fieldPubDate:    "January 1, 1951",
		fieldASIN:       "B000000000",
		fieldExternalID: "ext-1",
	}

	first := mapProduct(doc)
	second := mapProduct(doc)

	if reflect.DeepEqual(first, second) == false {
		t.Errorf("expected identical results from repeated mapping:\n%+v\n%+v", first, second)
	}
}
