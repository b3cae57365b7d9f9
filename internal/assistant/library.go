package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Profile holds the custom instructions the assistant uses for a user.
type Profile struct {
	Name  string `json:"name"`
	About string `json:"about"`
}

type ChatSummary struct {
	ChatID string `json:"chatId"`
	Title  string `json:"title"`
}

// GPT is a configured assistant persona.
type GPT struct {
	SK          string `json:"SK"`
	Name        string `json:"gptsName"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatarUrl"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) Profile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(userID)+"/profile", nil, &p)
	return p, err
}

func (c *Client) SaveProfile(ctx context.Context, userID string, p Profile) error {
	return c.do(ctx, http.MethodPut, "/user/"+url.PathEscape(userID)+"/profile", p, nil)
}

// Chats lists the stored conversations of the token's user.
func (c *Client) Chats(ctx context.Context) ([]ChatSummary, error) {
	var chats []ChatSummary
	err := c.do(ctx, http.MethodGet, "/chat", nil, &chats)
	return chats, err
}

// Chat returns the messages of one stored conversation, oldest first.
func (c *Client) Chat(ctx context.Context, chatID string) ([]Message, error) {
	var items []struct {
		SK      string `json:"SK"`
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/"+url.PathEscape(chatID), nil, &items); err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(items))
	for _, item := range items {
		messages = append(messages, Message{ID: item.SK, Role: roleFromWire(item.Role), Content: item.Content})
	}
	return messages, nil
}

// GPTs returns the public personas and the user's own.
func (c *Client) GPTs(ctx context.Context) (public, own []GPT, err error) {
	if err := c.do(ctx, http.MethodGet, "/gpts/public", nil, &public); err != nil {
		return nil, nil, err
	}
	if err := c.do(ctx, http.MethodGet, "/gpts/user", nil, &own); err != nil {
		return nil, nil, err
	}
	return public, own, nil
}

func roleFromWire(role string) Role {
	switch role {
	case "model", string(RoleAssistant):
		return RoleAssistant
	case string(RoleSystem):
		return RoleSystem
	default:
		return RoleUser
	}
}
