package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ejezie/Enact-Pricing/internal/config"
	"github.com/ejezie/Enact-Pricing/internal/middleware"
	"github.com/ejezie/Enact-Pricing/internal/models"
	"github.com/ejezie/Enact-Pricing/internal/scraper"
	"github.com/ejezie/Enact-Pricing/internal/services"
)

// Assistant answers questions about an analysis context.
type Assistant interface {
	Respond(ctx context.Context, question string, analysisCtx *models.ScrapeResponse, transcript []models.ChatMessage) (string, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions  *services.SessionService
	backend   *services.BackendClient
	scraper   scraper.Scraper
	assistant Assistant
	queue     *services.QueueService
	mode      string
}

// NewHandler creates a Handler. backend may be nil in local mode; scraper
// and assistant may be nil in proxy mode; queue may be nil when the async
// path is disabled.
func NewHandler(
	sessions *services.SessionService,
	backend *services.BackendClient,
	sc scraper.Scraper,
	assistant Assistant,
	queue *services.QueueService,
	mode string,
) *Handler {
	return &Handler{
		sessions:  sessions,
		backend:   backend,
		scraper:   sc,
		assistant: assistant,
		queue:     queue,
		mode:      mode,
	}
}

// HealthCheck returns 200 if the gateway is up.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "enact-pricing-gateway",
		"mode":    h.mode,
	})
}

// CreateSession creates a new empty session and returns the token.
func (h *Handler) CreateSession(c *gin.Context) {
	session, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		log.Printf("[handler] create session error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": session.Token})
}

// Heartbeat refreshes the TTL for a session.
func (h *Handler) Heartbeat(c *gin.Context) {
	token := c.Param("token")

	exists, err := h.sessions.Exists(c.Request.Context(), token)
	if err != nil || !exists {
		c.JSON(http.StatusNotFound, gin.H{"detail": "session not found"})
		return
	}

	if err := h.sessions.Heartbeat(c.Request.Context(), token); err != nil {
		log.Printf("[handler] heartbeat error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "heartbeat failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSession returns session metadata plus results when complete.
func (h *Handler) GetSession(c *gin.Context) {
	token := c.Param("token")
	ctx := c.Request.Context()

	session, err := h.sessions.Get(ctx, token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "session not found"})
		return
	}

	resp := gin.H{"session": session}

	if session.Status == "complete" {
		if results, err := h.sessions.GetResults(ctx, token); err == nil {
			resp["results"] = results
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Scrape validates the search request, applies the proxy defaults, and
// either forwards it to the scraping backend (relaying its response
// verbatim) or scrapes and analyzes locally. When the request carries a
// session token the parsed results are stored in that session, fenced so a
// slower earlier search can never overwrite a newer one.
func (h *Handler) Scrape(c *gin.Context) {
	req, ok := h.bindSearchRequest(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	token, fencingID := h.beginSessionSearch(c, req)

	if h.mode == config.ModeLocal {
		h.scrapeLocal(c, req, token, fencingID)
		return
	}

	status, body, err := h.backend.Scrape(ctx, req)
	if err != nil {
		log.Printf("[handler] backend scrape failed: %v", err)
		h.failSearch(c, token, fencingID, "Failed to reach the scraping backend")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to reach the scraping backend: " + err.Error()})
		return
	}

	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		var results models.ScrapeResponse
		if err := json.Unmarshal(body, &results); err != nil {
			log.Printf("[handler] backend payload decode failed: %v", err)
			h.failSearch(c, token, fencingID, "scraping backend returned an unreadable payload")
		} else if token != "" {
			if err := h.sessions.StoreResults(ctx, token, fencingID, &results); err != nil {
				if errors.Is(err, services.ErrStaleRequest) {
					log.Printf("[handler] dropped stale results for session %s", token)
				} else {
					log.Printf("[handler] store results error: %v", err)
				}
			}
		}
	} else {
		// Redirects and errors alike: the session must reach a terminal
		// state so a progress stream on it terminates.
		h.failSearch(c, token, fencingID, backendDetail(body))
	}

	// Relay the backend's status and JSON body unchanged.
	c.Data(status, "application/json", body)
}

// scrapeLocal runs the in-process scraper and analyzer.
func (h *Handler) scrapeLocal(c *gin.Context, req *models.SearchRequest, token, fencingID string) {
	ctx := c.Request.Context()

	products, err := h.scraper.Search(ctx, req)
	if err != nil {
		log.Printf("[handler] local scrape failed: %v", err)
		h.failSearch(c, token, fencingID, "Scraping failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to scrape data: " + err.Error()})
		return
	}
	if len(products) == 0 {
		h.failSearch(c, token, fencingID, "No items found")
		c.JSON(http.StatusNotFound, gin.H{"detail": "No items found"})
		return
	}

	analysis := services.AnalyzeMarket(products)
	results := &models.ScrapeResponse{
		Products:        products,
		MarketAnalysis:  analysis,
		Recommendations: services.GenerateRecommendations(analysis),
	}

	if token != "" {
		if err := h.sessions.StoreResults(ctx, token, fencingID, results); err != nil &&
			!errors.Is(err, services.ErrStaleRequest) {
			log.Printf("[handler] store results error: %v", err)
		}
	}

	c.JSON(http.StatusOK, results)
}

// ScrapeAsync enqueues the search for background processing and returns
// immediately. Progress is observable via GET /api/scrape/:token/stream.
func (h *Handler) ScrapeAsync(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "async scraping is not enabled"})
		return
	}

	req, ok := h.bindSearchRequest(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	token := req.SessionToken
	if token == "" {
		session, err := h.sessions.Create(ctx)
		if err != nil {
			log.Printf("[handler] create session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to create session"})
			return
		}
		token = session.Token
	}

	fencingID, err := h.sessions.BeginSearch(ctx, token, req.SearchQuery)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "session not found"})
		return
	}

	job := &models.ScrapeJob{Token: token, FencingID: fencingID, Request: *req}
	if err := h.queue.PublishScrapeJob(ctx, job); err != nil {
		log.Printf("[handler] publish scrape job: %v", err)
		h.failSearch(c, token, fencingID, "failed to enqueue scraping job")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to start search"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"token": token, "status": "scraping"})
}

// Chat answers a user question about the current analysis context. The
// context comes inline with the request or from the session's last results.
// Completion failures are recorded as an apology reply in the transcript,
// never as an error banner.
func (h *Handler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	text := strings.TrimSpace(req.Text())
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message is required"})
		return
	}

	ctx := c.Request.Context()
	token := h.chatToken(c, &req)

	analysisCtx := req.AnalysisContext()
	if analysisCtx == nil && token != "" {
		if results, err := h.sessions.GetResults(ctx, token); err == nil {
			analysisCtx = results
		}
	}
	if analysisCtx == nil || analysisCtx.MarketAnalysis == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "no analysis context yet; run a search first"})
		return
	}

	var transcript []models.ChatMessage
	if token != "" {
		if prior, err := h.sessions.GetTranscript(ctx, token); err == nil {
			transcript = prior
		}
		h.appendMessage(ctx, token, "user", text)
	}

	reply, err := h.assistant.Respond(ctx, text, analysisCtx, transcript)
	if err != nil {
		reply = services.ApologyReply
	}

	if token != "" {
		h.appendMessage(ctx, token, "assistant", reply)
	}

	c.JSON(http.StatusOK, models.ChatResponse{Response: reply})
}

// ClearChat empties the session transcript unconditionally.
func (h *Handler) ClearChat(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)

	if err := h.sessions.ClearTranscript(c.Request.Context(), token); err != nil {
		log.Printf("[handler] clear transcript error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to clear chat history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared", "detail": "Chat history cleared"})
}

// GetTranscript returns the session's ordered chat history.
func (h *Handler) GetTranscript(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)

	transcript, err := h.sessions.GetTranscript(c.Request.Context(), token)
	if err != nil {
		log.Printf("[handler] get transcript error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load chat history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": transcript})
}

// bindSearchRequest decodes, validates, and defaults a search request.
func (h *Handler) bindSearchRequest(c *gin.Context) (*models.SearchRequest, bool) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return nil, false
	}

	req.SearchQuery = strings.TrimSpace(req.SearchQuery)

	if req.CustomURLMode() {
		if !strings.HasPrefix(req.BaseURL, "http://") && !strings.HasPrefix(req.BaseURL, "https://") {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "base_url must be an absolute URL"})
			return nil, false
		}
	} else if len(req.SearchQuery) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "search_query is required (min 2 characters)"})
		return nil, false
	}

	req.ApplyDefaults()
	return &req, true
}

// beginSessionSearch stamps a new fencing id when the request names a
// session. Searches without a session are fire-and-forget.
func (h *Handler) beginSessionSearch(c *gin.Context, req *models.SearchRequest) (string, string) {
	token := req.SessionToken
	if token == "" {
		token = c.GetHeader("X-Session-Token")
	}
	if token == "" {
		return "", ""
	}

	fencingID, err := h.sessions.BeginSearch(c.Request.Context(), token, req.SearchQuery)
	if err != nil {
		log.Printf("[handler] begin search for %s: %v", token, err)
		return "", ""
	}
	return token, fencingID
}

func (h *Handler) failSearch(c *gin.Context, token, fencingID, msg string) {
	if token == "" {
		return
	}
	if err := h.sessions.SetError(c.Request.Context(), token, fencingID, msg); err != nil &&
		!errors.Is(err, services.ErrStaleRequest) {
		log.Printf("[handler] set error for %s: %v", token, err)
	}
}

func (h *Handler) chatToken(c *gin.Context, req *models.ChatRequest) string {
	if req.SessionToken != "" {
		return req.SessionToken
	}
	return c.GetHeader("X-Session-Token")
}

func (h *Handler) appendMessage(ctx context.Context, token, role, content string) {
	msg := models.ChatMessage{Role: role, Content: content, Timestamp: time.Now().UTC()}
	if err := h.sessions.AppendMessage(ctx, token, msg); err != nil {
		log.Printf("[handler] append %s message for %s: %v", role, token, err)
	}
}

// backendDetail extracts the detail string from a backend error body.
func backendDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return "scraping backend returned an error"
}
