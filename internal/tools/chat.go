package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/temirov/news-digest/internal/news"
	"github.com/temirov/news-digest/internal/pipeline"
)

const (
	ChatToolName       = "chat_post"
	DefaultChatChannel = "#general"
	ChatStatusSent     = "sent"

	chatServiceName         = "chat"
	defaultWebhookSetting   = "chat webhook URL"
	chatStatusErrorFormat   = "unexpected status: %s"
	chatResponsePreviewSize = 256
	sectionBlockType        = "section"
	dividerBlockType        = "divider"
	markdownTextType        = "mrkdwn"
	itemTextFormat          = "*<%s|%s>*\n%s"
)

// ChatReceipt confirms a posted batch.
type ChatReceipt struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// ChatNotifier posts item batches to a Slack incoming webhook.
type ChatNotifier struct {
	WebhookURL     string
	WebhookSetting string
	DefaultChannel string
	HTTPClient     *http.Client
}

type chatPayload struct {
	Channel string      `json:"channel"`
	Blocks  []chatBlock `json:"blocks"`
}

type chatBlock struct {
	Type string    `json:"type"`
	Text *chatText `json:"text,omitempty"`
}

type chatText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (n ChatNotifier) Name() string { return ChatToolName }

// Post sends every item in one request. An empty batch sends nothing and reports zero.
func (n ChatNotifier) Post(ctx context.Context, items []news.Item, channel string) (ChatReceipt, error) {
	webhookURL := strings.TrimSpace(n.WebhookURL)
	if webhookURL == "" {
		return ChatReceipt{}, pipeline.MissingSetting(settingName(n.WebhookSetting, defaultWebhookSetting))
	}
	if err := validateItems(items, false); err != nil {
		return ChatReceipt{}, err
	}
	if len(items) == 0 {
		return ChatReceipt{Status: ChatStatusSent, Count: 0}, nil
	}

	payload := buildChatPayload(items, n.resolveChannel(channel))
	requestBytes, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return ChatReceipt{}, marshalErr
	}
	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(requestBytes))
	if buildErr != nil {
		return ChatReceipt{}, pipeline.MalformedSetting(settingName(n.WebhookSetting, defaultWebhookSetting), buildErr)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, httpErr := clientOrDefault(n.HTTPClient).Do(httpRequest)
	if httpErr != nil {
		return ChatReceipt{}, &pipeline.TransportError{Service: chatServiceName, Err: httpErr}
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(httpResponse.Body)
		return ChatReceipt{}, &pipeline.TransportError{
			Service:    chatServiceName,
			StatusCode: httpResponse.StatusCode,
			Err:        fmt.Errorf(chatStatusErrorFormat, preview(bodyBytes, chatResponsePreviewSize)),
		}
	}
	return ChatReceipt{Status: ChatStatusSent, Count: len(items)}, nil
}

func (n ChatNotifier) resolveChannel(channel string) string {
	if trimmed := strings.TrimSpace(channel); trimmed != "" {
		return trimmed
	}
	if trimmed := strings.TrimSpace(n.DefaultChannel); trimmed != "" {
		return trimmed
	}
	return DefaultChatChannel
}

// buildChatPayload renders a heading link section followed by a divider for each item, in order.
func buildChatPayload(items []news.Item, channel string) chatPayload {
	blocks := make([]chatBlock, 0, len(items)*2)
	for _, item := range items {
		blocks = append(blocks,
			chatBlock{Type: sectionBlockType, Text: &chatText{
				Type: markdownTextType,
				Text: fmt.Sprintf(itemTextFormat, item.URL, item.Headline, item.Summary),
			}},
			chatBlock{Type: dividerBlockType},
		)
	}
	return chatPayload{Channel: channel, Blocks: blocks}
}
