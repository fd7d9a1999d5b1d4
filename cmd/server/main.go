package main

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"commerce-search-api/internal/models"
	"commerce-search-api/internal/services"
	"commerce-search-api/internal/upstream"
	"commerce-search-api/pkg/cache"
)

const (
	instanceCookie = "csa_i"
	sessionCookie  = "csa_s"
	cookieMaxAge   = 365 * 24 * 60 * 60
)

var (
	rateLimiters = make(map[string]*rate.Limiter)
	rateMutex    = &sync.RWMutex{}
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8085"
	}

	client, err := upstream.NewClient(upstream.ConfigFromEnv())
	if err != nil {
		log.Fatal("Failed to build upstream client:", err)
	}

	searchService := services.NewSearchService(client)
	agentService := services.NewAgentService(client)
	catalogService := services.NewCatalogService(client)
	redisCache := cache.NewRedisCache()

	r := gin.Default()

	// Add CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Add request ID middleware
	r.Use(func(c *gin.Context) {
		requestID := fmt.Sprintf("%d", time.Now().UnixNano())
		c.Header("X-Request-ID", requestID)
		start := time.Now()
		c.Next()
		log.Printf("[%s] %s %s - %v - %d",
			requestID, c.Request.Method, c.Request.URL.Path,
			time.Since(start), c.Writer.Status())
	})

	r.Use(rateLimitMiddleware())

	// Health check with cache status
	r.GET("/health", func(c *gin.Context) {
		health := gin.H{
			"status":  "healthy",
			"service": "commerce-search-api",
			"version": "1.0.0",
		}

		if redisCache != nil && redisCache.IsAvailable() {
			health["cache"] = "redis connected"
		} else {
			health["cache"] = "redis unavailable"
		}

		c.JSON(http.StatusOK, health)
	})

	// Cache stats endpoint
	r.GET("/cache/stats", func(c *gin.Context) {
		if redisCache == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache not available"})
			return
		}
		c.JSON(http.StatusOK, redisCache.GetStats())
	})

	// Cache flush endpoint (for testing)
	r.DELETE("/cache/flush", func(c *gin.Context) {
		if redisCache == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache not available"})
			return
		}
		if err := redisCache.FlushCache(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to flush cache", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cache flushed successfully"})
	})

	// Search with caching
	r.GET("/search", func(c *gin.Context) {
		query := c.Query("q")
		filters, opts := parseSearchInputs(c)
		attr := buildAttribution(c)

		cacheKey := ""
		if redisCache != nil && redisCache.IsAvailable() {
			cacheKey = redisCache.GenerateSearchKey("search", query, opts.Section, opts.Page, opts.PerPage, filterFingerprint(filters))
			if cached, err := redisCache.GetSearchResult(cacheKey); err == nil && cached != nil {
				log.Printf("Cache HIT for key: %s", cacheKey)
				c.JSON(http.StatusOK, cached.ToMap())
				return
			}
			log.Printf("Cache MISS for key: %s", cacheKey)
		}

		result := searchService.Search(c.Request.Context(), query, filters, opts, attr)

		if cacheKey != "" {
			if err := redisCache.SetSearchResult(cacheKey, result); err != nil {
				log.Printf("Failed to cache results: %v", err)
			}
		}

		c.JSON(http.StatusOK, result.ToMap())
	})

	r.GET("/browse/:name/:value", func(c *gin.Context) {
		filters, opts := parseSearchInputs(c)
		result := searchService.Browse(c.Request.Context(), c.Param("name"), c.Param("value"), filters, opts, buildAttribution(c))
		c.JSON(http.StatusOK, result.ToMap())
	})

	r.GET("/autocomplete", func(c *gin.Context) {
		opts := services.AutocompleteOptions{Section: c.Query("section")}
		result := searchService.Autocomplete(c.Request.Context(), c.Query("q"), opts, buildAttribution(c))
		c.JSON(http.StatusOK, result.ToMap())
	})

	r.GET("/zero-state", func(c *gin.Context) {
		result := searchService.ZeroStateData(c.Request.Context(), services.AutocompleteOptions{}, buildAttribution(c))
		c.JSON(http.StatusOK, result.ToMap())
	})

	r.GET("/recommendations/:pod", func(c *gin.Context) {
		opts := services.RecommendationOptions{NumResults: intQuery(c, "num_results", 0)}
		var result *models.RecommendationResultSet
		if itemID := c.Query("item_id"); itemID != "" {
			result = searchService.ItemRecommendations(c.Request.Context(), c.Param("pod"), itemID, opts, buildAttribution(c))
		} else {
			result = searchService.Recommendations(c.Request.Context(), c.Param("pod"), opts, buildAttribution(c))
		}
		c.JSON(http.StatusOK, result.ToMap())
	})

	r.GET("/groups", func(c *gin.Context) {
		opts := services.GroupOptions{
			MaxItems:    intQuery(c, "max_items", 0),
			MaxChildren: intQuery(c, "max_children", 0),
			WithImages:  c.Query("with_images") == "true",
		}
		groups := searchService.BrowseGroups(c.Request.Context(), opts, buildAttribution(c))
		payload := make([]map[string]any, 0, len(groups))
		for _, g := range groups {
			payload = append(payload, g.ToMap())
		}
		c.JSON(http.StatusOK, gin.H{"groups": payload})
	})

	r.GET("/collections", func(c *gin.Context) {
		collections := searchService.Collections(c.Request.Context(), buildAttribution(c))
		payload := make([]map[string]any, 0, len(collections))
		for _, col := range collections {
			payload = append(payload, col.ToMap())
		}
		c.JSON(http.StatusOK, gin.H{"collections": payload})
	})

	r.GET("/collections/:id", func(c *gin.Context) {
		collection := searchService.Collection(c.Request.Context(), c.Param("id"))
		if collection == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "collection_not_found", "message": "no collection with id " + c.Param("id")})
			return
		}
		c.JSON(http.StatusOK, collection.ToMap())
	})

	r.GET("/collections/:id/items", func(c *gin.Context) {
		filters, opts := parseSearchInputs(c)
		result := searchService.BrowseCollection(c.Request.Context(), c.Param("id"), filters, opts, buildAttribution(c))
		c.JSON(http.StatusOK, result.ToMap())
	})

	r.GET("/facets", func(c *gin.Context) {
		facets := searchService.AvailableFacets(c.Request.Context(), buildAttribution(c))
		payload := make(map[string]any, len(facets))
		for key, f := range facets {
			payload[key] = f.ToMap()
		}
		c.JSON(http.StatusOK, gin.H{"facets": payload})
	})

	r.GET("/facets/:name/values", func(c *gin.Context) {
		values := searchService.FacetValuesWithImages(c.Request.Context(), c.Param("name"), intQuery(c, "max_items", 10), buildAttribution(c))
		c.JSON(http.StatusOK, gin.H{"values": values})
	})

	r.GET("/recipes", func(c *gin.Context) {
		filters, opts := parseSearchInputs(c)
		result := searchService.SearchRecipes(c.Request.Context(), c.Query("q"), filters, opts, buildAttribution(c))
		c.JSON(http.StatusOK, result.ToMap())
	})

	r.GET("/recipes/:id", func(c *gin.Context) {
		recipe := searchService.Recipe(c.Request.Context(), c.Param("id"), buildAttribution(c))
		if recipe == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipe_not_found", "message": "no recipe with id " + c.Param("id")})
			return
		}
		c.JSON(http.StatusOK, recipe.ToMap())
	})

	r.POST("/agent/ask", func(c *gin.Context) {
		var req struct {
			Query    string `json:"query" binding:"required"`
			ThreadID string `json:"thread_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
			return
		}

		response, err := agentService.AskShoppingAgent(c.Request.Context(), req.Query, req.ThreadID, agentOptions(c))
		if err != nil {
			writeAgentError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.ToMap())
	})

	// Live SSE passthrough: upstream agent events are re-emitted to the
	// browser as they arrive.
	r.GET("/agent/stream", func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "q is required"})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		flusher, _ := c.Writer.(http.Flusher)
		onEvent := func(eventType string, data map[string]any) {
			encoded, err := json.Marshal(data)
			if err != nil {
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", eventType, encoded)
			if flusher != nil {
				flusher.Flush()
			}
		}

		if _, err := agentService.AskShoppingAgentStreaming(c.Request.Context(), query, onEvent, c.Query("thread_id"), agentOptions(c)); err != nil {
			log.Printf("Agent stream failed: %v", err)
		}
	})

	r.GET("/products/:id/questions", func(c *gin.Context) {
		questions := agentService.ProductQuestions(c.Request.Context(), c.Param("id"), agentOptions(c))
		c.JSON(http.StatusOK, gin.H{"questions": questions})
	})

	r.POST("/products/:id/questions", func(c *gin.Context) {
		var req struct {
			Question string `json:"question" binding:"required"`
			ThreadID string `json:"thread_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
			return
		}

		answer, err := agentService.AskProductQuestion(c.Request.Context(), req.Question, c.Param("id"), req.ThreadID, agentOptions(c))
		if err != nil {
			writeAgentError(c, err)
			return
		}
		c.JSON(http.StatusOK, answer.ToMap())
	})

	r.GET("/products/:id/complementary", func(c *gin.Context) {
		products := agentService.SearchComplementaryProducts(c.Request.Context(), c.Query("name"), intQuery(c, "limit", 4), c.Query("category"), agentOptions(c))
		payload := make([]map[string]any, 0, len(products))
		for _, p := range products {
			payload = append(payload, p.ToMap())
		}
		c.JSON(http.StatusOK, gin.H{"products": payload})
	})

	r.POST("/catalog/upload", func(c *gin.Context) {
		file, err := c.FormFile("items")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "items file is required"})
			return
		}

		tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("catalog-%d-%s", time.Now().UnixNano(), filepath.Base(file.Filename)))
		if err := c.SaveUploadedFile(file, tmpPath); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed", "message": err.Error()})
			return
		}
		defer os.Remove(tmpPath)

		task, err := catalogService.UploadCatalog(c.Request.Context(), tmpPath, c.PostForm("operation"), services.UploadOptions{
			Section: c.PostForm("section"),
			Force:   c.PostForm("force") == "true",
		})
		if err != nil {
			writeAgentError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, task.ToMap())
	})

	r.GET("/catalog/tasks/:id", func(c *gin.Context) {
		task, err := catalogService.TaskStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeAgentError(c, err)
			return
		}
		c.JSON(http.StatusOK, task.ToMap())
	})

	// API info endpoint
	r.GET("/api/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "Commerce Search API",
			"version":     "1.0.0",
			"description": "Typed gateway over the upstream commerce search and shopping-agent API",
			"features":    []string{"Search", "Browse", "Autocomplete", "Recommendations", "Collections", "Shopping agent (SSE)", "Catalog upload", "Redis caching"},
		})
	})

	log.Printf("Starting server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func parseSearchInputs(c *gin.Context) (upstream.Filters, upstream.SearchOptions) {
	opts := upstream.SearchOptions{
		Page:      intQuery(c, "page", 0),
		PerPage:   intQuery(c, "per_page", 0),
		Section:   c.Query("section"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
		UserID:    c.Query("user_id"),
	}

	filters := upstream.Filters{Values: map[string][]string{}, Ranges: map[string]upstream.RangeFilter{}}
	for key, values := range c.Request.URL.Query() {
		if len(key) > 7 && key[:7] == "filter_" {
			filters.Values[key[7:]] = values
		}
	}

	var priceRange upstream.RangeFilter
	if min := c.Query("min_price"); min != "" {
		if v, err := strconv.ParseFloat(min, 64); err == nil {
			priceRange.Min = &v
		}
	}
	if max := c.Query("max_price"); max != "" {
		if v, err := strconv.ParseFloat(max, 64); err == nil {
			priceRange.Max = &v
		}
	}
	if priceRange.Min != nil || priceRange.Max != nil {
		filters.Ranges["price"] = priceRange
	}

	return filters, opts
}

// buildAttribution sources the backend-attribution context from the incoming
// request so the core never reaches into ambient state itself.
func buildAttribution(c *gin.Context) *upstream.Attribution {
	attr := &upstream.Attribution{
		ForwardedFor:   c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		ClientToken:    c.GetHeader("x-cnstrc-token"),
		ClientID:       "commerce-search-api",
		OriginReferrer: c.Request.Referer(),
	}

	attr.InstanceID = cookieOrNewID(c, instanceCookie)
	attr.SessionID = cookieOrNewID(c, sessionCookie)

	return attr
}

func cookieOrNewID(c *gin.Context, name string) string {
	if value, err := c.Cookie(name); err == nil && value != "" {
		return value
	}
	value := uuid.NewString()
	c.SetCookie(name, value, cookieMaxAge, "/", "", false, true)
	return value
}

func agentOptions(c *gin.Context) services.AgentOptions {
	return services.AgentOptions{
		Guard:       c.Query("guard") != "false",
		UserID:      c.Query("user_id"),
		Attribution: buildAttribution(c),
	}
}

func filterFingerprint(filters upstream.Filters) string {
	if len(filters.Values) == 0 && len(filters.Ranges) == 0 {
		return ""
	}
	encoded, err := json.Marshal(filters)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(encoded)
	return hex.EncodeToString(sum[:8])
}

func intQuery(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// writeAgentError maps the typed error taxonomy onto HTTP statuses.
func writeAgentError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	code := "upstream_error"

	var configErr *models.ConfigurationError
	var rateErr *models.RateLimitError
	var authErr *models.AuthenticationError
	var fileErr *models.FileNotFoundError
	var timeoutErr *models.TaskTimeoutError

	switch {
	case errors.As(err, &configErr):
		status, code = http.StatusServiceUnavailable, "not_configured"
	case errors.As(err, &rateErr):
		status, code = http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &authErr):
		status, code = http.StatusBadGateway, "upstream_auth_failed"
	case errors.As(err, &fileErr):
		status, code = http.StatusBadRequest, "file_not_found"
	case errors.As(err, &timeoutErr):
		status, code = http.StatusGatewayTimeout, "task_timeout"
	}

	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func getRateLimiter(ip string) *rate.Limiter {
	rateMutex.RLock()
	limiter, exists := rateLimiters[ip]
	rateMutex.RUnlock()

	if !exists {
		rateMutex.Lock()
		limiter = rate.NewLimiter(rate.Limit(10), 20) // 10 req/sec, burst 20
		rateLimiters[ip] = limiter
		rateMutex.Unlock()
	}

	return limiter
}

func rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := getRateLimiter(ip)

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests from your IP",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
