package elevenlabs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	xerrors "tablevoice-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Client is a typed HTTP client for the conversational-AI provider.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
	logger        *zap.Logger
}

func NewClient(baseURL, apiKey, webhookSecret string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        strings.TrimSpace(apiKey),
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
}

// AgentConfig mirrors the provider's agent resource. Fields we never manage
// locally (tool ids, platform settings) are carried through untouched so a
// partial update does not clobber them.
type AgentConfig struct {
	AgentID            string   `json:"agent_id,omitempty"`
	Name               string   `json:"name"`
	FirstMessage       string   `json:"first_message"`
	SystemPrompt       string   `json:"system_prompt"`
	VoiceID            string   `json:"voice_id,omitempty"`
	MaxDurationSeconds int      `json:"max_duration_seconds,omitempty"`
	ToolIDs            []string `json:"tool_ids,omitempty"`
}

type createAgentResponse struct {
	AgentID string `json:"agent_id"`
}

type knowledgeBaseFileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type outboundCallResponse struct {
	CallSID string `json:"callSid"`
	Success bool   `json:"success"`
}

// CreateAgent provisions a new remote agent and returns its provider id.
func (c *Client) CreateAgent(ctx context.Context, cfg *AgentConfig) (string, error) {
	var out createAgentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/convai/agents/create", cfg, &out); err != nil {
		return "", err
	}
	if out.AgentID == "" {
		return "", fmt.Errorf("%w: provider returned no agent id", xerrors.ErrUpstream)
	}
	return out.AgentID, nil
}

// GetAgent fetches the current remote configuration of an agent.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*AgentConfig, error) {
	var out AgentConfig
	if err := c.do(ctx, http.MethodGet, "/v1/convai/agents/"+agentID, nil, &out); err != nil {
		return nil, err
	}
	out.AgentID = agentID
	return &out, nil
}

// UpdateAgent patches the remote agent with cfg. Callers are expected to have
// built cfg from the current remote state so untouched fields survive.
func (c *Client) UpdateAgent(ctx context.Context, agentID string, cfg *AgentConfig) error {
	return c.do(ctx, http.MethodPatch, "/v1/convai/agents/"+agentID, cfg, nil)
}

// DeleteAgent removes the remote agent. A 404 is treated as success so that
// cascade deletes stay idempotent.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	err := c.do(ctx, http.MethodDelete, "/v1/convai/agents/"+agentID, nil, nil)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return nil
	}
	return err
}

// UploadKnowledgeBaseFile pushes one document as a knowledge-base file and
// returns the provider's file id.
func (c *Client) UploadKnowledgeBaseFile(ctx context.Context, name, content string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/convai/knowledge-base/file", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", xerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return "", err
	}

	var out knowledgeBaseFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding upload response: %v", xerrors.ErrUpstream, err)
	}
	return out.ID, nil
}

// DeleteKnowledgeBaseFile removes a knowledge-base file. A 404 means the file
// is already gone and is not an error.
func (c *Client) DeleteKnowledgeBaseFile(ctx context.Context, fileID string) error {
	err := c.do(ctx, http.MethodDelete, "/v1/convai/knowledge-base/"+fileID, nil, nil)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return nil
	}
	return err
}

// StartOutboundCall places a test call from the agent's number to toNumber.
func (c *Client) StartOutboundCall(ctx context.Context, agentID, fromNumber, toNumber string) (string, error) {
	payload := map[string]string{
		"agent_id":    agentID,
		"from_number": fromNumber,
		"to_number":   toNumber,
	}

	var out outboundCallResponse
	if err := c.do(ctx, http.MethodPost, "/v1/convai/twilio/outbound-call", payload, &out); err != nil {
		return "", err
	}
	return out.CallSID, nil
}

// VerifyWebhookSignature checks the HMAC signature header of a provider
// webhook. The header carries "t=<unix>,v0=<hex digest>" where the digest is
// computed over "<unix>.<body>".
func (c *Client) VerifyWebhookSignature(body []byte, header string) error {
	if c.webhookSecret == "" {
		return fmt.Errorf("%w: webhook secret not configured", xerrors.ErrUnauthenticated)
	}

	var timestamp, signature string
	for _, part := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(part, "t="):
			timestamp = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v0="):
			signature = strings.TrimPrefix(part, "v0=")
		}
	}
	if timestamp == "" || signature == "" {
		return fmt.Errorf("%w: malformed signature header", xerrors.ErrUnauthenticated)
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: webhook signature mismatch", xerrors.ErrUnauthenticated)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", xerrors.ErrUpstream, err)
		}
	}
	return nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	c.logger.Warn("voice provider request failed",
		zap.Int("status", resp.StatusCode),
		zap.String("url", resp.Request.URL.Path),
		zap.ByteString("detail", detail),
	)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return xerrors.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected credentials", xerrors.ErrUpstream)
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return fmt.Errorf("%w: %s", xerrors.ErrInvalidInput, strings.TrimSpace(string(detail)))
	default:
		return fmt.Errorf("%w: provider returned status %d", xerrors.ErrUpstream, resp.StatusCode)
	}
}
