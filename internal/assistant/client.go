// Package assistant talks to the course assistant service: a streaming
// prompt endpoint and a per-user history endpoint.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ErrorSuffix    = "\n\n*Sorry, an error occurred. Please try again.*"
	ConnectFailure = "Failed to connect to the server. Please check your connection and try again."
)

var (
	ErrEmptyPrompt   = errors.New("prompt cannot be empty")
	ErrBusy          = errors.New("a reply is still streaming")
	ErrNotConfigured = errors.New("assistant url is not configured")
)

type Model struct {
	ID   string
	Name string
}

var Models = []Model{
	{ID: "gemini-1.5-pro-latest", Name: "Gemini 1.5 Pro (Search Enabled)"},
	{ID: "gemini-1.5-flash-latest", Name: "Gemini 1.5 Flash"},
}

// ModelName returns the display name of a known model, or the id itself.
func ModelName(id string) string {
	for _, m := range Models {
		if m.ID == id {
			return m.Name
		}
	}
	return id
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Streaming bool
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, token string, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse assistant url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
		logger:  logger,
	}, nil
}

func (c *Client) authorize(r *http.Request) {
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}
}

type historyResponse struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// History fetches the stored conversation of a user, oldest first. Stored
// "model" turns come back as assistant messages.
func (c *Client) History(ctx context.Context, userID string) ([]Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chat/history/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch history: unexpected status %d", resp.StatusCode)
	}

	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	now := time.Now()
	n := len(body.Messages)
	messages := make([]Message, 0, n)
	for i, item := range body.Messages {
		messages = append(messages, Message{
			ID:      fmt.Sprintf("history-%d", i),
			Role:    roleFromWire(item.Role),
			Content: item.Content,
			// Spread stored turns one second apart, ending now.
			Timestamp: now.Add(-time.Duration(n-i) * time.Second),
		})
	}
	return messages, nil
}

// Conversation is the local transcript with the assistant.
type Conversation struct {
	client *Client

	mu        sync.Mutex
	messages  []Message
	model     string
	webSearch bool
	temp      float64
	busy      bool
	now       func() time.Time
}

func NewConversation(client *Client, model string) *Conversation {
	if model == "" {
		model = Models[0].ID
	}
	return &Conversation{client: client, model: model, temp: 0.7, now: time.Now}
}

func (cv *Conversation) SetOptions(webSearch bool, temperature float64) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.webSearch = webSearch
	cv.temp = temperature
}

func (cv *Conversation) Model() string {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.model
}

// SwitchModel selects a model and notes the change in the transcript.
func (cv *Conversation) SwitchModel(id string) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.model = id
	cv.messages = append(cv.messages, Message{
		ID:        uuid.NewString(),
		Role:      RoleSystem,
		Content:   "Model switched to " + ModelName(id),
		Timestamp: cv.now(),
	})
}

// LoadHistory replaces the transcript with the stored one.
func (cv *Conversation) LoadHistory(ctx context.Context, userID string) error {
	history, err := cv.client.History(ctx, userID)
	if err != nil {
		return err
	}
	cv.mu.Lock()
	cv.messages = history
	cv.mu.Unlock()
	return nil
}

func (cv *Conversation) Messages() []Message {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return append([]Message(nil), cv.messages...)
}

// Ask appends the prompt and a streaming reply, and fills the reply as
// chunks arrive. onUpdate sees the reply after every change. The returned
// message is final; stream failures are folded into its content and also
// returned as the error.
func (cv *Conversation) Ask(ctx context.Context, prompt string, onUpdate func(Message)) (Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return Message{}, ErrEmptyPrompt
	}

	cv.mu.Lock()
	if cv.busy {
		cv.mu.Unlock()
		return Message{}, ErrBusy
	}
	cv.busy = true
	now := cv.now()
	cv.messages = append(cv.messages,
		Message{ID: uuid.NewString(), Role: RoleUser, Content: prompt, Timestamp: now},
		Message{ID: uuid.NewString(), Role: RoleAssistant, Timestamp: now.Add(time.Millisecond), Streaming: true},
	)
	idx := len(cv.messages) - 1
	req := StreamRequest{Prompt: prompt, Model: cv.model, WebSearch: cv.webSearch, Temperature: cv.temp}
	cv.mu.Unlock()

	update := func(change func(m *Message)) Message {
		cv.mu.Lock()
		m := &cv.messages[idx]
		change(m)
		m.Timestamp = cv.now()
		out := *m
		cv.mu.Unlock()
		if onUpdate != nil {
			onUpdate(out)
		}
		return out
	}

	err := cv.client.Stream(ctx, req, func(chunk string) {
		update(func(m *Message) { m.Content += chunk })
	})

	var connectErr *ConnectError
	final := update(func(m *Message) {
		m.Streaming = false
		switch {
		case err == nil:
			m.Content = strings.TrimSpace(m.Content)
		case errors.As(err, &connectErr):
			m.Content = ConnectFailure
		default:
			m.Content += ErrorSuffix
		}
	})

	cv.mu.Lock()
	cv.busy = false
	cv.mu.Unlock()

	if err != nil {
		cv.client.logger.Warn("Assistant stream failed", "model", req.Model, "error", err)
	}
	return final, err
}
