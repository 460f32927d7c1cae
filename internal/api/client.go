// Package api is the HTTP client for the room platform API: room settings
// before a join, room visibility changes after.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/core"
	"github.com/openstage/roomclient/internal/domain"
)

const defaultTimeout = 15 * time.Second

// Client implements core.SettingsLoader against the platform API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
	}
}

// envelope is the API's uniform response wrapper. A non-empty errors list
// means the request failed even on HTTP 200; the first entry is the error
// class name.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Errors   []string        `json:"errors"`
}

type wireSettings struct {
	Name        string `json:"name"`
	Password    string `json:"password"`
	Description string `json:"description"`

	OzForwarder string `json:"ozForwarder"`
	Token       string `json:"token"`
	SocketURL   string `json:"socketUrl"`

	OwnerID          string `json:"ownerId"`
	IsAdmin          bool   `json:"isAdmin"`
	IsDone           bool   `json:"isDone"`
	IsPrivate        bool   `json:"isPrivate"`
	IsSpecialSpeaker bool   `json:"isSpecialSpeaker"`
	EventScheduleID  string `json:"eventScheduleId"`

	WithSpeakers bool `json:"withSpeakers"`
	IsMultiroom  bool `json:"isMultiroom"`

	UIConfig struct {
		RadarSize     float64 `json:"radarSize"`
		RoomWidthMul  float64 `json:"roomWidthMul"`
		RoomHeightMul float64 `json:"roomHeightMul"`
	} `json:"uiConfig"`

	VideoWidth  int `json:"videoWidth"`
	VideoHeight int `json:"videoHeight"`
	FPS         int `json:"fps"`
}

// LoadRoomSettings fetches the join settings for one room. API-level
// failures come back as *core.SettingsError so the session can classify
// them (payment gate, NFT gate, plain failure).
func (c *Client) LoadRoomSettings(ctx context.Context, p core.SettingsParams) (*domain.RoomSettings, error) {
	u := fmt.Sprintf("%s/v1/video-room/%s/settings?password=%s",
		c.baseURL, url.PathEscape(string(p.RoomID)), url.QueryEscape(string(p.RoomPass)))

	var ws wireSettings
	if err := c.get(ctx, u, &ws); err != nil {
		return nil, err
	}

	return &domain.RoomSettings{
		Name:        domain.RoomID(ws.Name),
		Password:    domain.RoomPass(ws.Password),
		Description: ws.Description,

		RelayAddress: ws.OzForwarder,
		RelayToken:   ws.Token,
		SocketURL:    ws.SocketURL,

		OwnerID:          domain.UserID(ws.OwnerID),
		IsAdmin:          ws.IsAdmin,
		IsDone:           ws.IsDone,
		IsPrivate:        ws.IsPrivate,
		IsSpecialSpeaker: ws.IsSpecialSpeaker,
		EventScheduleID:  ws.EventScheduleID,

		WithSpeakers: ws.WithSpeakers,
		IsMultiroom:  ws.IsMultiroom,
		RadarSize:    ws.UIConfig.RadarSize,

		RoomWidthMul:  ws.UIConfig.RoomWidthMul,
		RoomHeightMul: ws.UIConfig.RoomHeightMul,

		VideoWidth:  ws.VideoWidth,
		VideoHeight: ws.VideoHeight,
		FPS:         ws.FPS,
	}, nil
}

// MakeRoomPublic drops the room's private flag server-side.
func (c *Client) MakeRoomPublic(ctx context.Context, id domain.RoomID) error {
	u := fmt.Sprintf("%s/v1/video-room/%s/make-public", c.baseURL, url.PathEscape(string(id)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if len(env.Errors) > 0 {
		log.Debug().Str("module", "api").Str("error", env.Errors[0]).Msg("api error response")
		return &core.SettingsError{Name: env.Errors[0]}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}
