// Package agrolink provides a client for the AgrolinkHub chat API.
package agrolink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// DefaultURL is used when no base URL is given.
const DefaultURL = "http://localhost:8080"

// Client is an AgrolinkHub API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	Token      string
	UserID     string
	HTTPClient *http.Client
}

// Session is the persisted login state.
type Session struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// NewClient creates a client and loads any saved session.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	configDir := os.Getenv("AGROLINK_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".agrolink")
	}

	c := &Client{
		BaseURL:    baseURL,
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadSession()
	return c
}

// LoadSession reads the saved token from disk.
func (c *Client) LoadSession() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "session.json"))
	if err != nil {
		return err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	c.UserID = s.UserID
	c.Token = s.Token
	return nil
}

// SaveSession writes the current token to disk.
func (c *Client) SaveSession() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(Session{UserID: c.UserID, Token: c.Token}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "session.json"), data, 0600)
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agrolink error %d: %s", e.Status, e.Message)
}

// doRequest performs an HTTP request and decodes the JSON response into out.
func (c *Client) doRequest(method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if c.Token == "" {
			return fmt.Errorf("not logged in")
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// User is a public profile.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	ProfileImage string `json:"profileImage,omitempty"`
	JoinedAt     string `json:"joinedAt"`
}

// RegisterRequest is the request body for account creation.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Register creates an account and stores the returned session.
func (c *Client) Register(req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doRequest(http.MethodPost, "/api/auth/register", req, &resp, false); err != nil {
		return nil, err
	}
	c.adopt(&resp)
	return &resp, nil
}

// Login exchanges credentials for a token and stores the session.
func (c *Client) Login(email, password string) (*AuthResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var resp AuthResponse
	if err := c.doRequest(http.MethodPost, "/api/auth/login", in, &resp, false); err != nil {
		return nil, err
	}
	c.adopt(&resp)
	return &resp, nil
}

func (c *Client) adopt(resp *AuthResponse) {
	c.Token = resp.Token
	c.UserID = resp.User.ID
}

// Message is one chat message.
type Message struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	RoomID      string    `json:"roomId"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sentAt"`
	Read        bool      `json:"read"`
}

// Identity is a counterpart's display information.
type Identity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage,omitempty"`
	Role         string `json:"role,omitempty"`
	Placeholder  bool   `json:"placeholder,omitempty"`
}

// Conversation is one inbox entry.
type Conversation struct {
	RoomID      string    `json:"roomId"`
	LastMessage Message   `json:"lastMessage"`
	OtherUser   *Identity `json:"otherUser"`
}

// History is a room's messages, oldest first.
type History struct {
	RoomID   string    `json:"roomId"`
	Messages []Message `json:"messages"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status    string                       `json:"status"`
	Version   string                       `json:"version"`
	Instance  string                       `json:"instance,omitempty"`
	Checks    map[string]map[string]string `json:"checks"`
	Timestamp string                       `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(http.MethodGet, "/health", nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetUser fetches a public profile.
func (c *Client) GetUser(id string) (*User, error) {
	var resp User
	if err := c.doRequest(http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conversations lists the logged-in user's inbox, newest first.
func (c *Client) Conversations() ([]Conversation, error) {
	var resp []Conversation
	if err := c.doRequest(http.MethodGet, "/api/chat/conversations", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetHistory fetches a room's messages.
func (c *Client) GetHistory(roomID string) (*History, error) {
	var resp History
	if err := c.doRequest(http.MethodGet, "/api/chat/"+url.PathEscape(roomID), nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RoomWith returns the room id shared with another user.
func (c *Client) RoomWith(userID string) (string, error) {
	var resp struct {
		RoomID string `json:"roomId"`
	}
	if err := c.doRequest(http.MethodGet, "/api/chat/rooms/with/"+url.PathEscape(userID), nil, &resp, true); err != nil {
		return "", err
	}
	return resp.RoomID, nil
}
