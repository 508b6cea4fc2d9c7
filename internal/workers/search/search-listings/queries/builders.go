package queries

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrMissingIndex = errors.New("index name is required")
)

// ListingQuery describes one search over the listings index.
type ListingQuery struct {
	Index      string
	Keywords   string
	Location   string
	PriceMin   float64
	PriceMax   float64
	RoomsMin   int
	Features   []string
	SortBy     string
	Pagination struct {
		From int
		Size int
	}
}

// BuildSearchRequest translates a ListingQuery into an Elasticsearch request.
func BuildSearchRequest(lq ListingQuery) (*esapi.SearchRequest, error) {
	if lq.Index == "" {
		return nil, ErrMissingIndex
	}

	body, _ := json.Marshal(buildListingSearchQuery(lq))

	req := esapi.SearchRequest{
		Index: []string{lq.Index},
		Body:  strings.NewReader(string(body)),
		From:  &lq.Pagination.From,
		Size:  &lq.Pagination.Size,
	}

	return &req, nil
}

func buildListingSearchQuery(lq ListingQuery) map[string]interface{} {
	boolQuery := make(map[string]interface{})
	mustClauses := []interface{}{}
	filterClauses := []interface{}{}

	// Keyword search over the text fields
	if lq.Keywords != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  lq.Keywords,
				"fields": []string{"title^3", "location^2", "features"},
				"type":   "best_fields",
			},
		})
	}

	if lq.Location != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"match": map[string]interface{}{"location": lq.Location},
		})
	}

	if lq.PriceMin > 0 || lq.PriceMax > 0 {
		priceRange := map[string]interface{}{}
		if lq.PriceMin > 0 {
			priceRange["gte"] = lq.PriceMin
		}
		if lq.PriceMax > 0 {
			priceRange["lte"] = lq.PriceMax
		}
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{"price": priceRange},
		})
	}

	if lq.RoomsMin > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{
				"rooms_count": map[string]interface{}{"gte": lq.RoomsMin},
			},
		})
	}

	if len(lq.Features) > 0 {
		for _, feature := range lq.Features {
			filterClauses = append(filterClauses, map[string]interface{}{
				"match": map[string]interface{}{"features": feature},
			})
		}
	}

	if len(mustClauses) == 0 {
		mustClauses = append(mustClauses, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery["must"] = mustClauses
	if len(filterClauses) > 0 {
		boolQuery["filter"] = filterClauses
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
	}

	switch lq.SortBy {
	case "price":
		query["sort"] = []map[string]interface{}{{"price": "asc"}}
	case "newest":
		query["sort"] = []map[string]interface{}{{"createdAt": "desc"}}
	}

	return query
}
