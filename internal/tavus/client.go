package tavus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://tavusapi.com"

// Conversation is the vendor resource representing one live AI-video session.
type Conversation struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	Status          string `json:"status,omitempty"`
}

// CreateRequest carries the identifiers and context for a new conversation.
type CreateRequest struct {
	PersonaID string
	ReplicaID string
	// UserName, when set, is woven into the conversational context.
	UserName string
}

type createPayload struct {
	PersonaID             string `json:"persona_id"`
	CustomGreeting        string `json:"custom_greeting"`
	ConversationalContext string `json:"conversational_context"`
	ReplicaID             string `json:"replica_id,omitempty"`
}

const customGreeting = "Hey there! I'm excited to chat with you today. How are you doing?"

// ConversationalContext builds the persona briefing string sent to the vendor.
func ConversationalContext(userName string) string {
	var b strings.Builder
	if name := strings.TrimSpace(userName); name != "" {
		fmt.Fprintf(&b, "You are talking with the user, %s. ", name)
	}
	b.WriteString("You are an AI persona for dating practice conversations. Be friendly, engaging, and help the user practice their dating conversation skills.")
	return b.String()
}

// Client talks to the Tavus conversations API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateConversation asks the vendor for a new conversation resource.
func (c *Client) CreateConversation(ctx context.Context, credential string, req CreateRequest) (Conversation, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Conversation{}, &APIError{Kind: ErrKindMissingCredential, Message: "API key is required"}
	}
	personaID := strings.TrimSpace(req.PersonaID)
	if personaID == "" {
		return Conversation{}, &APIError{Kind: ErrKindInvalidPersona, Message: "persona ID is required"}
	}

	payload := createPayload{
		PersonaID:             personaID,
		CustomGreeting:        customGreeting,
		ConversationalContext: ConversationalContext(req.UserName),
	}
	if replica := strings.TrimSpace(req.ReplicaID); replica != "" {
		payload.ReplicaID = replica
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Conversation{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/conversations", bytes.NewReader(body))
	if err != nil {
		return Conversation{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", credential)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return Conversation{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return Conversation{}, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Conversation{}, classifyCreateError(res.StatusCode, raw)
	}

	var conv Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	if conv.ConversationID == "" || conv.ConversationURL == "" {
		return Conversation{}, fmt.Errorf("vendor returned incomplete conversation: %s", string(raw))
	}
	return conv, nil
}

// EndConversation asks the vendor to end a conversation. It tolerates
// already-ended conversations so teardown can be safely repeated.
func (c *Client) EndConversation(ctx context.Context, credential, conversationID string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return &APIError{Kind: ErrKindGeneric, Message: "conversation ID is required"}
	}

	url := fmt.Sprintf("%s/v2/conversations/%s/end", c.baseURL, conversationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", strings.TrimSpace(credential))

	res, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 8<<10))
	msg := vendorMessage(raw)
	if alreadyEnded(res.StatusCode, msg) {
		return nil
	}
	return classifyCreateError(res.StatusCode, raw)
}

func alreadyEnded(status int, message string) bool {
	if status != http.StatusBadRequest && status != http.StatusNotFound {
		return false
	}
	m := strings.ToLower(message)
	return strings.Contains(m, "already ended") || strings.Contains(m, "not active") || status == http.StatusNotFound
}
