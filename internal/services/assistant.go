package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

// ApologyReply is appended to the transcript in place of an assistant
// message when the completion call fails. Failures are recorded in the
// transcript, never surfaced as a banner.
const ApologyReply = "I apologize, but I encountered an error while analyzing the data. Please try again."

const assistantSystemPrompt = "You are a helpful market analysis expert providing insights about eBay product data."

// AssistantService answers user questions about the current search's market
// analysis. The API key is loaded from the environment and NEVER exposed in
// responses or logs.
type AssistantService struct {
	client *openai.Client
}

// NewAssistantService creates an OpenAI-backed assistant. The key must be
// non-empty.
func NewAssistantService(apiKey string) *AssistantService {
	return &AssistantService{
		client: openai.NewClient(apiKey),
	}
}

// Respond generates an answer to question grounded in the analysis context.
// The prior transcript is replayed so follow-up questions stay coherent.
func (a *AssistantService) Respond(
	ctx context.Context,
	question string,
	analysisCtx *models.ScrapeResponse,
	transcript []models.ChatMessage,
) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: assistantSystemPrompt},
		{Role: openai.ChatMessageRoleSystem, Content: contextSummary(analysisCtx)},
	}

	for _, msg := range transcript {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       openai.GPT3Dot5Turbo,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		// IMPORTANT: Never log the API key. Only log the error message.
		log.Printf("[assistant] API call failed: %v", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("assistant returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// contextSummary renders the analysis context into the prompt block the
// assistant answers from.
func contextSummary(analysisCtx *models.ScrapeResponse) string {
	if analysisCtx == nil || analysisCtx.MarketAnalysis == nil {
		return "No market data is available yet. Tell the user to run a search first."
	}

	stats := analysisCtx.MarketAnalysis.MarketStats
	segments := analysisCtx.MarketAnalysis.PriceSegments

	var sb strings.Builder
	sb.WriteString("Use this data to answer the user's question.\n\n")
	sb.WriteString("Market Statistics:\n")
	fmt.Fprintf(&sb, "- Average Price: £%.2f\n", stats.AveragePrice)
	fmt.Fprintf(&sb, "- Median Price: £%.2f\n", stats.MedianPrice)
	fmt.Fprintf(&sb, "- Price Range: £%.2f to £%.2f\n", stats.PriceRange.Min, stats.PriceRange.Max)
	sb.WriteString("\nPrice Segments:\n")
	fmt.Fprintf(&sb, "- Budget: Below £%.2f\n", segments.Budget)
	fmt.Fprintf(&sb, "- Mid-Range: Around £%.2f\n", segments.MidRange)
	fmt.Fprintf(&sb, "- Premium: Above £%.2f\n", segments.Premium)
	fmt.Fprintf(&sb, "\nNumber of Products Analyzed: %d\n", len(analysisCtx.Products))

	return sb.String()
}
