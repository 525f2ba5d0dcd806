package main

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// facetSelections holds the facet values selected by the client.  an empty
// list means "no filter for this facet"; a selected empty-string value means
// "include documents missing or blank in this field".
type facetSelections struct {
	publisher []string
	language  []string
	edition   []string
	pubYears  []string
}

type productFilters struct {
	search string
	facets facetSelections
}

func trimmedValues(vals []string) []string {
	var trimmed []string

	for _, val := range vals {
		trimmed = append(trimmed, strings.TrimSpace(val))
	}

	return trimmed
}

// nonblankValues drops empty-string entries, leaving the real selections
func nonblankValues(vals []string) []string {
	var values []string

	for _, val := range vals {
		if val != "" {
			values = append(values, val)
		}
	}

	return values
}

func hasBlankValue(vals []string) bool {
	for _, val := range vals {
		if val == "" {
			return true
		}
	}

	return false
}

// parseYears converts year selections to integers, silently dropping
// anything unparseable
func parseYears(vals []string) []int {
	var years []int

	for _, val := range vals {
		if year, err := strconv.Atoi(val); err == nil {
			years = append(years, year)
		}
	}

	return years
}

func (f *facetSelections) active() bool {
	return len(f.publisher) > 0 || len(f.language) > 0 || len(f.edition) > 0 || len(f.pubYears) > 0
}

func (f *productFilters) hasSearch() bool {
	return f.search != ""
}

func parseProductFilters(ctx *gin.Context) productFilters {
	filters := productFilters{
		search: strings.TrimSpace(ctx.Query("search")),
		facets: facetSelections{
			publisher: trimmedValues(ctx.QueryArray("publisher")),
			language:  trimmedValues(ctx.QueryArray("language")),
			edition:   trimmedValues(ctx.QueryArray("edition")),
			pubYears:  nonblankValues(trimmedValues(ctx.QueryArray("pubYear"))),
		},
	}

	return filters
}
