// File: notification/discord/dclient.go
package discord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Windfall/pkg/ledger"
	"Windfall/utilities"
)

// Client sends trade notifications to a Discord webhook. An empty webhook URL
// disables the client: every send becomes a logged no-op, so callers never
// need to special-case a missing webhook.
type Client struct {
	webhookURL string
	HTTPClient *http.Client
	logger     *utilities.Logger
}

// DiscordMessage represents the structure for a Discord webhook message.
// See: https://discord.com/developers/docs/resources/webhook#execute-webhook
type DiscordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents an embed object in a Discord message.
type DiscordEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"` // ISO8601 timestamp
	Color       int    `json:"color,omitempty"`     // Decimal color code
}

func NewClient(webhookURL string, logger *utilities.Logger) *Client {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	if webhookURL == "" {
		logger.LogWarn("Discord Client: Webhook URL is empty. Notifications will not be sent.")
	} else {
		logger.LogInfo("Discord Client initialized with webhook URL.")
	}
	return &Client{
		webhookURL: webhookURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SendMessage sends a simple text message to the configured Discord webhook.
func (c *Client) SendMessage(message string) error {
	if c.webhookURL == "" {
		c.logger.LogDebug("Discord SendMessage: Webhook URL is not set, skipping.")
		return nil
	}
	if strings.TrimSpace(message) == "" {
		c.logger.LogDebug("Discord SendMessage: Message is empty, skipping.")
		return nil
	}
	return c.sendPayload(DiscordMessage{Content: message})
}

// SendEmbedMessage sends a message with one or more embeds.
func (c *Client) SendEmbedMessage(embeds ...DiscordEmbed) error {
	if c.webhookURL == "" {
		c.logger.LogDebug("Discord SendEmbedMessage: Webhook URL is not set, skipping.")
		return nil
	}
	if len(embeds) == 0 {
		c.logger.LogDebug("Discord SendEmbedMessage: No embeds provided, skipping.")
		return nil
	}
	return c.sendPayload(DiscordMessage{Embeds: embeds})
}

// sendPayload is an internal helper to send the marshalled JSON payload.
func (c *Client) sendPayload(payload DiscordMessage) error {
	if c.webhookURL == "" {
		return fmt.Errorf("discord webhook URL not configured")
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		c.logger.LogError("Discord sendPayload: Failed to marshal JSON: %v", err)
		return fmt.Errorf("failed to marshal discord message: %w", err)
	}

	req, err := http.NewRequest("POST", c.webhookURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		c.logger.LogError("Discord sendPayload: Failed to create HTTP request: %v", err)
		return fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "WindfallBot/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.LogError("Discord sendPayload: Failed to send HTTP request: %v", err)
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.LogDebug("Discord sendPayload: Message sent successfully (Status: %s)", resp.Status)
		return nil
	}

	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		c.logger.LogError("Discord sendPayload: Received non-OK status: %s. Failed to read body: %v", resp.Status, readErr)
		return fmt.Errorf("discord API error: %s, failed to read response body", resp.Status)
	}
	c.logger.LogError("Discord sendPayload: Received non-OK status: %s. Body: %s", resp.Status, string(bodyBytes))
	return fmt.Errorf("discord API error: %s, response: %s", resp.Status, string(bodyBytes))
}

// NotifyPositionOpened sends a formatted notification for a newly opened position.
func (c *Client) NotifyPositionOpened(pos ledger.Position, score int, reasons []string) error {
	if c.webhookURL == "" {
		c.logger.LogDebug("Discord NotifyPositionOpened: Webhook URL is not set, skipping.")
		return nil
	}

	title := fmt.Sprintf("✅ Position Opened: %s", pos.Symbol)
	if pos.Simulated {
		title = fmt.Sprintf("✅ Simulated Position Opened: %s", pos.Symbol)
	}

	description := fmt.Sprintf(
		"**Entry Price**: `%.8f`\n"+
			"**Quantity**: `%.8f`\n"+
			"**Invested**: `%.2f`\n"+
			"**Take Profit**: `%.8f`\n"+
			"**Score**: `%d`\n"+
			"**Reasons**: %s",
		pos.EntryPrice, pos.Quantity, pos.Invested, pos.TakeProfitPrice,
		score, strings.Join(reasons, "; "),
	)

	embed := DiscordEmbed{
		Title:       title,
		Description: description,
		Color:       3066993, // Green
		Timestamp:   pos.OpenedAt.Format(time.RFC3339),
	}
	return c.SendEmbedMessage(embed)
}

// NotifyPositionClosed sends a formatted notification for a closed position.
func (c *Client) NotifyPositionClosed(pos ledger.Position) error {
	if c.webhookURL == "" {
		c.logger.LogDebug("Discord NotifyPositionClosed: Webhook URL is not set, skipping.")
		return nil
	}

	var title string
	var color int
	if pos.PnL >= 0 {
		title = fmt.Sprintf("💰 Position Closed (Profit): %s", pos.Symbol)
		color = 3066993 // Green
	} else {
		title = fmt.Sprintf("🔻 Position Closed (Loss): %s", pos.Symbol)
		color = 15158332 // Red
	}
	if pos.Simulated {
		title = "Simulated " + title
	}

	description := fmt.Sprintf(
		"**Entry Price**: `%.8f`\n"+
			"**Exit Price**: `%.8f`\n"+
			"**Quantity**: `%.8f`\n"+
			"**Net Proceeds**: `%.8f`\n"+
			"**PnL**: `%.8f`",
		pos.EntryPrice, pos.ExitPrice, pos.Quantity, pos.NetProceeds, pos.PnL,
	)

	timestamp := time.Now()
	if pos.ClosedAt != nil {
		timestamp = *pos.ClosedAt
	}

	embed := DiscordEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   timestamp.Format(time.RFC3339),
	}
	return c.SendEmbedMessage(embed)
}
