package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// functions that map raw catalog documents into normalized product records

// catalog document field names, as produced by the ingestion process.
// documents are loosely typed and not guaranteed to carry any of these.
const (
	fieldExternalID    = "id"
	fieldTitle         = "Title"
	fieldDescription   = "Description"
	fieldURL           = "url"
	fieldASIN          = "ASIN"
	fieldPublisher     = "Publisher"
	fieldPubDate       = "Publication date"
	fieldEdition       = "Edition"
	fieldLanguage      = "Language"
	fieldReviews       = "Customer Reviews"
	fieldEntities      = "entities"
	fieldImageURL      = "image_url"
	fieldCategory      = "category"
	fieldPrice         = "price"
	fieldOriginalPrice = "original_price"
	fieldInStock       = "in_stock"
)

const (
	defaultCategory    = "General"
	defaultDescription = "Descripción no disponible."
	defaultImagePath   = "/assets/placeholder.svg"
)

type catalogDocument map[string]interface{}

type product struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Price           float64  `json:"price"`
	OriginalPrice   *float64 `json:"original_price"`
	ImageURL        string   `json:"image_url"`
	Category        string   `json:"category"`
	Rating          float64  `json:"rating"`
	ReviewCount     int      `json:"review_count"`
	InStock         bool     `json:"in_stock"`
	URL             string   `json:"url,omitempty"`
	Publisher       string   `json:"publisher,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Entities        []string `json:"entities"`
}

func (d catalogDocument) stringValue(field string) string {
	if val, ok := d[field].(string); ok == true {
		return val
	}

	return ""
}

func (d catalogDocument) stringSlice(field string) []string {
	var items []interface{}

	switch val := d[field].(type) {
	case primitive.A:
		items = val
	case []interface{}:
		items = val
	case []string:
		return val
	default:
		return nil
	}

	var values []string

	for _, item := range items {
		if s, ok := item.(string); ok == true {
			values = append(values, s)
		}
	}

	return values
}

func (d catalogDocument) floatValue(field string) (float64, bool) {
	switch val := d[field].(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	}

	return 0, false
}

func (d catalogDocument) boolValue(field string, fallback bool) bool {
	if val, ok := d[field].(bool); ok == true {
		return val
	}

	return fallback
}

func (d catalogDocument) idString() string {
	switch val := d["_id"].(type) {
	case primitive.ObjectID:
		return val.Hex()
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}

	return ""
}

// ratingRE matches the first decimal (or integer) number in a review summary
var ratingRE = regexp.MustCompile(`\d+(?:\.\d+)?`)

// reviewTokenRE matches numeric tokens: thousands-separated integers, or
// plain numbers with an optional fraction.  decimal matches are kept so that
// a rating like "4.5" consumes its fraction digits, then discarded.
var reviewTokenRE = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?`)

// parseRating extracts a star rating and review count from a free-text
// review summary, e.g. "4.5 out of 5 stars, 1,234 ratings".  the first
// decimal number is the rating.  of the integer tokens, the second is the
// review count; the first is assumed to be an unrelated leading number.
func parseRating(raw string) (float64, int) {
	if raw == "" {
		return 0, 0
	}

	rating := 0.0
	if match := ratingRE.FindString(raw); match != "" {
		rating, _ = strconv.ParseFloat(match, 64)
	}

	var integers []int

	for _, token := range reviewTokenRE.FindAllString(raw, -1) {
		if strings.Contains(token, ".") == true {
			continue
		}

		val, err := strconv.Atoi(strings.ReplaceAll(token, ",", ""))
		if err != nil {
			continue
		}

		integers = append(integers, val)
	}

	reviewCount := 0
	if len(integers) > 1 {
		reviewCount = integers[1]
	}

	return rating, reviewCount
}

// normalizeCategory derives a display category for a document that
// does not store one: explicit category, else first entity, else
// publisher, else a generic default.
func normalizeCategory(doc catalogDocument) string {
	if category := doc.stringValue(fieldCategory); category != "" {
		return category
	}

	if entities := doc.stringSlice(fieldEntities); len(entities) > 0 {
		return firstElementOf(entities)
	}

	if publisher := doc.stringValue(fieldPublisher); publisher != "" {
		return publisher
	}

	return defaultCategory
}

// mapProduct converts a raw catalog document into a normalized product.
// total: every field receives a value, defaulted when absent.
func mapProduct(doc catalogDocument) product {
	rating, reviewCount := parseRating(doc.stringValue(fieldReviews))

	id := doc.stringValue(fieldExternalID)
	if id == "" {
		id = doc.idString()
	}

	description := doc.stringValue(fieldDescription)
	if description == "" {
		description = defaultDescription
	}

	imageURL := doc.stringValue(fieldImageURL)
	if imageURL == "" {
		imageURL = defaultImagePath
	}

	price, _ := doc.floatValue(fieldPrice)

	var originalPrice *float64
	if val, ok := doc.floatValue(fieldOriginalPrice); ok == true {
		originalPrice = &val
	}

	entities := doc.stringSlice(fieldEntities)
	if entities == nil {
		entities = []string{}
	}

	return product{
		ID:              id,
		Title:           doc.stringValue(fieldTitle),
		Description:     description,
		Price:           price,
		OriginalPrice:   originalPrice,
		ImageURL:        imageURL,
		Category:        normalizeCategory(doc),
		Rating:          rating,
		ReviewCount:     reviewCount,
		InStock:         doc.boolValue(fieldInStock, true),
		URL:             doc.stringValue(fieldURL),
		Publisher:       doc.stringValue(fieldPublisher),
		PublicationDate: doc.stringValue(fieldPubDate),
		Entities:        entities,
	}
}

func mapProducts(docs []catalogDocument) []product {
	products := []product{}

	for _, doc := range docs {
		products = append(products, mapProduct(doc))
	}

	return products
}
