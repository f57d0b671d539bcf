package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/ejezie/Enact-Pricing/internal/api"
	"github.com/ejezie/Enact-Pricing/internal/config"
	"github.com/ejezie/Enact-Pricing/internal/models"
	"github.com/ejezie/Enact-Pricing/internal/scraper"
	"github.com/ejezie/Enact-Pricing/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Redis ---
	redisSvc, err := services.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.SessionTTLHrs)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisSvc.Close()
	log.Println("Connected to Redis")

	// --- RabbitMQ (optional: only the async scrape path needs it) ---
	var queueSvc *services.QueueService
	if queueSvc, err = services.NewQueueService(cfg.RabbitMQURL); err != nil {
		log.Printf("RabbitMQ unavailable, async scraping disabled: %v", err)
		queueSvc = nil
	} else {
		defer queueSvc.Close()
		log.Println("Connected to RabbitMQ")
	}

	// --- Services ---
	sessionSvc := services.NewSessionService(redisSvc)
	assistantSvc := services.NewAssistantService(cfg.OpenAIKey)

	var backendSvc *services.BackendClient
	var scraperSvc scraper.Scraper
	if cfg.ScrapeMode == config.ModeLocal {
		if cfg.ScraperEngine == config.EngineBrowser {
			scraperSvc = scraper.NewBrowserScraper(os.Getenv("CHROME_BIN"))
		} else {
			scraperSvc = scraper.NewHTTPScraper()
		}
		log.Printf("Scrape mode: local (%s engine)", cfg.ScraperEngine)
	} else {
		backendSvc = services.NewBackendClient(cfg.BackendURL, cfg.RequestTimeout, cfg.MaxRetries)
		log.Printf("Scrape mode: proxy -> %s", cfg.BackendURL)
	}

	// --- Background workers for the async scrape path ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if queueSvc != nil {
		results, err := queueSvc.ConsumeScrapeResults(ctx)
		if err != nil {
			log.Fatalf("Failed to start scrape result consumer: %v", err)
		}
		go processScrapeResults(ctx, results, sessionSvc)

		// In local mode the gateway is its own scraper worker. In proxy
		// mode an external worker consumes scrape_jobs instead.
		if cfg.ScrapeMode == config.ModeLocal {
			jobs, err := queueSvc.ConsumeScrapeJobs(ctx)
			if err != nil {
				log.Fatalf("Failed to start scrape job consumer: %v", err)
			}
			go processScrapeJobs(ctx, jobs, queueSvc, scraperSvc)
		}
	}

	// --- HTTP Server ---
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	handler := api.NewHandler(sessionSvc, backendSvc, scraperSvc, assistantSvc, queueSvc, cfg.ScrapeMode)
	api.SetupRoutes(router, cfg, handler, redisSvc)

	go func() {
		addr := ":" + cfg.Port
		log.Printf("Gateway listening on %s", addr)
		if err := router.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")
	cancel()
}

// processScrapeJobs runs queued searches through the local scraper and
// publishes the raw listings for analysis.
func processScrapeJobs(
	ctx context.Context,
	jobs <-chan models.ScrapeJob,
	queue *services.QueueService,
	sc scraper.Scraper,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}

			result := models.ScrapeResult{Token: job.Token, FencingID: job.FencingID}
			products, err := sc.Search(ctx, &job.Request)
			if err != nil {
				log.Printf("[worker] scrape error for %s: %v", job.Token, err)
				result.Error = err.Error()
			} else {
				result.Products = products
			}

			if err := queue.PublishScrapeResult(ctx, &result); err != nil {
				log.Printf("[worker] publish result for %s: %v", job.Token, err)
			}
		}
	}
}

// processScrapeResults listens for completed scrape jobs, runs the market
// analysis, and stores the results in the session (fenced).
func processScrapeResults(
	ctx context.Context,
	results <-chan models.ScrapeResult,
	sessions *services.SessionService,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-results:
			if !ok {
				return
			}
			handleScrapeResult(ctx, result, sessions)
		}
	}
}

func handleScrapeResult(ctx context.Context, result models.ScrapeResult, sessions *services.SessionService) {
	token := result.Token

	if result.Error != "" {
		log.Printf("[worker] scrape error for %s: %s", token, result.Error)
		sessions.SetError(ctx, token, result.FencingID, "Scraping failed: "+result.Error)
		return
	}

	if len(result.Products) == 0 {
		sessions.SetError(ctx, token, result.FencingID, "No items found")
		return
	}

	if err := sessions.UpdateStatus(ctx, token, result.FencingID, "analyzing"); err != nil {
		log.Printf("[worker] update status for %s: %v", token, err)
		return
	}

	analysis := services.AnalyzeMarket(result.Products)
	payload := &models.ScrapeResponse{
		Products:        result.Products,
		MarketAnalysis:  analysis,
		Recommendations: services.GenerateRecommendations(analysis),
	}

	if err := sessions.StoreResults(ctx, token, result.FencingID, payload); err != nil {
		log.Printf("[worker] store results for %s: %v", token, err)
		return
	}

	log.Printf("[worker] analysis complete for session %s (%d listings)", token, len(result.Products))
}
