package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"

	"commerce-search-api/internal/models"
	"commerce-search-api/internal/normalize"
	"commerce-search-api/internal/transform"
	"commerce-search-api/internal/upstream"
	"commerce-search-api/pkg/utils"
)

// allGroupsSentinel is the browse category value meaning "everything".
// Facet discovery must route through browse with it because upstream rejects
// wildcard search queries.
const allGroupsSentinel = "All"

// collectionFacetNames are the facet keys the fallback path accepts as
// collection sources, in preference order.
var collectionFacetNames = []string{"collection_id", "collection_ids", "collections", "collection"}

const (
	groupImageProbePageSize = 5
	recipeScanPageSize      = 100
)

// SearchService wraps the search/browse/recommendation endpoint family.
//
// Every read operation degrades gracefully: any transport or upstream error
// is logged at the operation boundary and converted into the operation's
// empty result. An upstream outage must never fail a page render, so callers
// that need to distinguish "no results" from "outage" have to check the logs.
type SearchService struct {
	client *upstream.Client
}

func NewSearchService(client *upstream.Client) *SearchService {
	return &SearchService{client: client}
}

// AutocompleteOptions tunes an autocomplete call. SectionCounts maps section
// display names to result counts per section; Section restricts the call to
// one section when supplied.
type AutocompleteOptions struct {
	SectionCounts map[string]int
	Section       string
	UserID        string
}

// RecommendationOptions tunes a recommendation-pod call.
type RecommendationOptions struct {
	NumResults int
	UserID     string
}

// GroupOptions bounds the category tree returned by BrowseGroups.
type GroupOptions struct {
	MaxItems    int
	MaxChildren int
	WithImages  bool
}

const (
	defaultSuggestionCount     = 8
	defaultAutocompleteProduct = 6
	defaultRecommendationCount = 10
	defaultGroupMaxItems       = 10
	defaultGroupMaxChildren    = 5
)

// Search runs a full-text query against the catalog.
func (s *SearchService) Search(ctx context.Context, query string, filters upstream.Filters, opts upstream.SearchOptions, attr *upstream.Attribution) *models.SearchResultSet {
	params := upstream.BuildSearchParams(filters, opts)

	body, err := s.client.Get(ctx, "/search/"+upstream.PercentEncode(query), params, attr)
	if err != nil {
		log.Printf("Search failed for %q: %v", query, err)
		return models.NewEmptySearchResult()
	}

	return transform.SearchResult(body, opts.Page, opts.PerPage)
}

// Browse lists the catalog filtered by one facet. Hierarchical category ids
// are double-encoded in the path because upstream stores them pre-encoded.
func (s *SearchService) Browse(ctx context.Context, filterName, filterValue string, filters upstream.Filters, opts upstream.SearchOptions, attr *upstream.Attribution) *models.SearchResultSet {
	params := upstream.BuildSearchParams(filters, opts)
	path := "/browse/" + upstream.PercentEncode(filterName) + "/" + upstream.EncodeBrowseValue(filterName, filterValue)

	body, err := s.client.Get(ctx, path, params, attr)
	if err != nil {
		log.Printf("Browse failed for %s=%s: %v", filterName, filterValue, err)
		return models.NewEmptySearchResult()
	}

	return transform.SearchResult(body, opts.Page, opts.PerPage)
}

// Autocomplete returns query-driven suggestions, products and categories.
func (s *SearchService) Autocomplete(ctx context.Context, query string, opts AutocompleteOptions, attr *upstream.Attribution) *models.AutocompleteResultSet {
	body, err := s.client.Get(ctx, "/autocomplete/"+upstream.PercentEncode(query), s.autocompleteParams(opts), attr)
	if err != nil {
		log.Printf("Autocomplete failed for %q: %v", query, err)
		return models.NewEmptyAutocompleteResult()
	}

	return transform.Autocomplete(body)
}

// ZeroStateData returns the trending/popular/top-category triple shown for a
// focused but empty search input.
func (s *SearchService) ZeroStateData(ctx context.Context, opts AutocompleteOptions, attr *upstream.Attribution) *models.AutocompleteResultSet {
	body, err := s.client.Get(ctx, "/autocomplete/", s.autocompleteParams(opts), attr)
	if err != nil {
		log.Printf("Zero-state fetch failed: %v", err)
		return models.NewEmptyAutocompleteResult()
	}

	return transform.ZeroState(body)
}

func (s *SearchService) autocompleteParams(opts AutocompleteOptions) upstream.Params {
	counts := opts.SectionCounts
	if len(counts) == 0 {
		counts = map[string]int{
			transform.ProductsSection:    defaultAutocompleteProduct,
			transform.SuggestionsSection: defaultSuggestionCount,
		}
	}

	params := upstream.Params{}
	for section, count := range counts {
		params["num_results_"+section] = count
	}
	if opts.Section != "" {
		params["section"] = opts.Section
	}
	if opts.UserID != "" {
		params["ui"] = opts.UserID
	}
	return params
}

// Recommendations fetches a strategy pod by its opaque id.
func (s *SearchService) Recommendations(ctx context.Context, podID string, opts RecommendationOptions, attr *upstream.Attribution) *models.RecommendationResultSet {
	return s.recommendations(ctx, podID, "", opts, attr)
}

// ItemRecommendations fetches an item-based pod (e.g. "similar items").
func (s *SearchService) ItemRecommendations(ctx context.Context, podID, itemID string, opts RecommendationOptions, attr *upstream.Attribution) *models.RecommendationResultSet {
	return s.recommendations(ctx, podID, itemID, opts, attr)
}

func (s *SearchService) recommendations(ctx context.Context, podID, itemID string, opts RecommendationOptions, attr *upstream.Attribution) *models.RecommendationResultSet {
	numResults := opts.NumResults
	if numResults <= 0 {
		numResults = defaultRecommendationCount
	}

	params := upstream.Params{"num_results": numResults}
	if itemID != "" {
		params["item_id"] = itemID
	}
	if opts.UserID != "" {
		params["ui"] = opts.UserID
	}

	body, err := s.client.Get(ctx, "/recommendations/v1/pods/"+upstream.PercentEncode(podID), params, attr)
	if err != nil {
		log.Printf("Recommendations failed for pod %s: %v", podID, err)
		return models.NewEmptyRecommendationResult(podID)
	}

	return transform.Recommendations(podID, body)
}

// BrowseGroups returns the category tree, optionally enriching image-less
// groups with the first product image found by a bounded browse.
func (s *SearchService) BrowseGroups(ctx context.Context, opts GroupOptions, attr *upstream.Attribution) []models.Group {
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = defaultGroupMaxItems
	}
	maxChildren := opts.MaxChildren
	if maxChildren <= 0 {
		maxChildren = defaultGroupMaxChildren
	}

	body, err := s.client.Get(ctx, "/browse/groups", upstream.Params{}, attr)
	if err != nil {
		log.Printf("Browse groups failed: %v", err)
		return []models.Group{}
	}

	response, _ := body["response"].(map[string]any)
	rawGroups, _ := response["groups"].([]any)
	groups := normalize.Groups(rawGroups, maxItems, maxChildren)

	if opts.WithImages {
		for i := range groups {
			if groups[i].Image == "" {
				groups[i].Image = s.firstGroupImage(ctx, groups[i].ID, attr)
			}
		}
	}

	return groups
}

// firstGroupImage probes a small browse page for the group and takes the
// first product carrying an image. First match wins, no ranking.
func (s *SearchService) firstGroupImage(ctx context.Context, groupID string, attr *upstream.Attribution) string {
	if groupID == "" {
		return ""
	}

	result := s.Browse(ctx, upstream.HierarchicalFilterName, groupID, upstream.Filters{}, upstream.SearchOptions{PerPage: groupImageProbePageSize}, attr)
	for _, product := range result.Products {
		if product.ImageURL != "" {
			return product.ImageURL
		}
	}
	return ""
}

// Collections lists curated collections. With an admin token the
// authenticated endpoint is tried first; on any failure or an empty result
// the list is derived from collection facets on a generic browse.
func (s *SearchService) Collections(ctx context.Context, attr *upstream.Attribution) []models.Collection {
	if s.client.HasSecretToken() {
		if collections := s.adminCollections(ctx); len(collections) > 0 {
			return collections
		}
	}
	return s.collectionsFromFacets(ctx, attr)
}

func (s *SearchService) adminCollections(ctx context.Context) []models.Collection {
	body, err := s.client.GetAdmin(ctx, "/v1/collections", upstream.Params{})
	if err != nil {
		log.Printf("Admin collections fetch failed: %v", err)
		return nil
	}

	rawCollections, _ := body["collections"].([]any)
	collections := make([]models.Collection, 0, len(rawCollections))
	for _, entry := range rawCollections {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if c, ok := collectionFromMap(m); ok {
			collections = append(collections, c)
		}
	}
	return collections
}

func (s *SearchService) collectionsFromFacets(ctx context.Context, attr *upstream.Attribution) []models.Collection {
	facets := s.AvailableFacets(ctx, attr)

	for _, name := range collectionFacetNames {
		facet, ok := facets[name]
		if !ok {
			continue
		}

		collections := make([]models.Collection, 0, len(facet.Values))
		for _, value := range facet.Values {
			collections = append(collections, models.Collection{
				ID:   value.Value,
				Name: utils.Humanize(value.Value),
				Data: map[string]any{"count": value.Count},
			})
		}
		return collections
	}

	return []models.Collection{}
}

// BrowseCollection lists a collection's items. A zero total from the
// authenticated endpoint falls through to a generic browse; that conflates a
// legitimately empty collection with an unavailable endpoint, which matches
// the upstream contract as observed.
func (s *SearchService) BrowseCollection(ctx context.Context, id string, filters upstream.Filters, opts upstream.SearchOptions, attr *upstream.Attribution) *models.SearchResultSet {
	if s.client.HasSecretToken() {
		params := upstream.BuildSearchParams(filters, opts)
		body, err := s.client.GetAdmin(ctx, "/v1/collections/"+upstream.PercentEncode(id)+"/items", params)
		if err == nil {
			result := transform.SearchResult(body, opts.Page, opts.PerPage)
			if result.Total > 0 {
				return result
			}
		} else {
			log.Printf("Admin collection items fetch failed for %s: %v", id, err)
		}
	}

	return s.Browse(ctx, "collection_id", id, filters, opts, attr)
}

// Collection fetches one collection record. A 404 from the authenticated
// endpoint means "does not exist" and returns nil; every other failure, and
// the no-token case, synthesizes a renderable placeholder from the id.
func (s *SearchService) Collection(ctx context.Context, id string) *models.Collection {
	if s.client.HasSecretToken() {
		body, err := s.client.GetAdmin(ctx, "/v1/collections/"+upstream.PercentEncode(id), upstream.Params{})
		if err == nil {
			if c, ok := collectionFromMap(body); ok {
				return &c
			}
		} else {
			var upstreamErr *models.UpstreamRequestError
			if errors.As(err, &upstreamErr) && upstreamErr.StatusCode == http.StatusNotFound {
				return nil
			}
			log.Printf("Collection fetch failed for %s: %v", id, err)
		}
	}

	return &models.Collection{
		ID:   id,
		Name: utils.Humanize(id),
		Data: map[string]any{},
	}
}

// FirstProductImageFromCollection sources a representative image for a
// collection tile. Cosmetic: every failure degrades to "".
func (s *SearchService) FirstProductImageFromCollection(ctx context.Context, id string, attr *upstream.Attribution) string {
	result := s.BrowseCollection(ctx, id, upstream.Filters{}, upstream.SearchOptions{PerPage: groupImageProbePageSize}, attr)
	for _, product := range result.Products {
		if product.ImageURL != "" {
			return product.ImageURL
		}
	}
	return ""
}

// AvailableFacets discovers the filterable facets. Wildcard search is
// rejected upstream, so this routes through browse with the all-groups
// sentinel.
func (s *SearchService) AvailableFacets(ctx context.Context, attr *upstream.Attribution) map[string]models.Facet {
	result := s.Browse(ctx, upstream.HierarchicalFilterName, allGroupsSentinel, upstream.Filters{}, upstream.SearchOptions{PerPage: 1}, attr)
	return result.Facets
}

// FacetValuesWithImages returns the top facet values by count, each enriched
// with a sample product image from a single-result browse.
func (s *SearchService) FacetValuesWithImages(ctx context.Context, facetName string, maxItems int, attr *upstream.Attribution) []models.FacetValueImage {
	facets := s.AvailableFacets(ctx, attr)
	facet, ok := facets[facetName]
	if !ok {
		return []models.FacetValueImage{}
	}

	values := make([]models.FacetValue, len(facet.Values))
	copy(values, facet.Values)
	sort.SliceStable(values, func(i, j int) bool {
		return values[i].Count > values[j].Count
	})
	if maxItems > 0 && len(values) > maxItems {
		values = values[:maxItems]
	}

	out := make([]models.FacetValueImage, 0, len(values))
	for _, value := range values {
		enriched := models.FacetValueImage{Value: value.Value, Count: value.Count}
		probe := s.Browse(ctx, facetName, value.Value, upstream.Filters{}, upstream.SearchOptions{PerPage: 1}, attr)
		for _, product := range probe.Products {
			if product.ImageURL != "" {
				enriched.Image = product.ImageURL
				break
			}
		}
		out = append(out, enriched)
	}
	return out
}

// SearchRecipes reuses the search machinery with the section overridden.
func (s *SearchService) SearchRecipes(ctx context.Context, query string, filters upstream.Filters, opts upstream.SearchOptions, attr *upstream.Attribution) *models.SearchResultSet {
	opts.Section = upstream.RecipesSection
	return s.Search(ctx, query, filters, opts, attr)
}

// BrowseRecipes reuses the browse machinery with the section overridden.
func (s *SearchService) BrowseRecipes(ctx context.Context, filterName, filterValue string, filters upstream.Filters, opts upstream.SearchOptions, attr *upstream.Attribution) *models.SearchResultSet {
	opts.Section = upstream.RecipesSection
	return s.Browse(ctx, filterName, filterValue, filters, opts, attr)
}

// Recipe looks up one recipe by id. There is no direct lookup upstream, so
// this fetches one broad page and linear-scans the normalized ids. Catalogs
// beyond the fixed page size will silently miss; known limitation, acceptable
// while recipe catalogs stay small.
func (s *SearchService) Recipe(ctx context.Context, id string, attr *upstream.Attribution) *models.Product {
	result := s.Browse(ctx, upstream.HierarchicalFilterName, allGroupsSentinel, upstream.Filters{}, upstream.SearchOptions{
		Section: upstream.RecipesSection,
		PerPage: recipeScanPageSize,
	}, attr)

	for i := range result.Products {
		if result.Products[i].ID == id {
			product := result.Products[i]
			return &product
		}
	}
	return nil
}

func collectionFromMap(m map[string]any) (models.Collection, bool) {
	id, _ := m["collection_id"].(string)
	if id == "" {
		id, _ = m["id"].(string)
	}
	if id == "" {
		return models.Collection{}, false
	}

	name, _ := m["display_name"].(string)
	if name == "" {
		name, _ = m["name"].(string)
	}
	if name == "" {
		name = utils.Humanize(id)
	}

	return models.Collection{ID: id, Name: name, Data: m}, true
}
