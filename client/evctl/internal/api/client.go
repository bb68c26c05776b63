package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"evregistry/client/evctl/internal/session"
)

// Location is the external coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Creator is the populated createdBy reference.
type Creator struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Station is a station as returned by the registry.
type Station struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Location      Location  `json:"location"`
	PowerOutput   float64   `json:"powerOutput"`
	Slots         int       `json:"slots"`
	ConnectorType string    `json:"connectorType"`
	Status        string    `json:"status"`
	CreatedBy     *Creator  `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// StationPayload is a create/update body. Nil fields are omitted.
type StationPayload struct {
	Name          *string   `json:"name,omitempty"`
	Location      *Location `json:"location,omitempty"`
	PowerOutput   *float64  `json:"powerOutput,omitempty"`
	Slots         *int      `json:"slots,omitempty"`
	ConnectorType *string   `json:"connectorType,omitempty"`
	Status        *string   `json:"status,omitempty"`
}

// User is the account part of an auth response.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Event is one change feed message.
type Event struct {
	Type      string    `json:"type"`
	StationID string    `json:"stationId"`
	Station   *Station  `json:"station,omitempty"`
	At        time.Time `json:"at"`
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Client talks to the station registry on behalf of the stored session.
type Client struct {
	base    *BaseClient
	baseURL string
	holder  *session.Holder
	dialer  *websocket.Dialer
}

// NewClient returns client.
func NewClient(baseURL string, httpClient HTTPDoer, holder *session.Holder) *Client {
	return &Client{
		base:    NewBaseClient(baseURL, httpClient),
		baseURL: strings.TrimRight(baseURL, "/"),
		holder:  holder,
		dialer:  websocket.DefaultDialer,
	}
}

// Signup registers an account and stores the issued token.
func (c *Client) Signup(ctx context.Context, name, email, password string) (*User, error) {
	var res authResponse
	in := map[string]string{"name": name, "email": email, "password": password}
	if err := c.base.do(ctx, http.MethodPost, "/api/auth/signup", "", in, &res); err != nil {
		return nil, err
	}
	if err := c.holder.Save(res.Token); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// Login authenticates and stores the issued token.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var res authResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.base.do(ctx, http.MethodPost, "/api/auth/login", "", in, &res); err != nil {
		return nil, err
	}
	if err := c.holder.Save(res.Token); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// Me asks the server who the stored token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.authed(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListStations returns stations; empty filter values are not sent.
func (c *Client) ListStations(ctx context.Context, status, connectorType string) ([]Station, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if connectorType != "" {
		q.Set("connectorType", connectorType)
	}
	path := "/api/charging-stations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Station
	if err := c.authed(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStation(ctx context.Context, id string) (*Station, error) {
	var out Station
	if err := c.authed(ctx, http.MethodGet, "/api/charging-stations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateStation(ctx context.Context, p StationPayload) (*Station, error) {
	var out Station
	if err := c.authed(ctx, http.MethodPost, "/api/charging-stations", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStation(ctx context.Context, id string, p StationPayload) (*Station, error) {
	var out Station
	if err := c.authed(ctx, http.MethodPut, "/api/charging-stations/"+url.PathEscape(id), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteStation(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodDelete, "/api/charging-stations/"+url.PathEscape(id), nil, nil)
}

// Watch streams change events to fn until ctx ends or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(Event)) error {
	s, err := c.holder.Current()
	if err != nil {
		return err
	}

	u, err := url.Parse(c.baseURL + "/api/charging-stations/events")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Token)
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			apiErr := &Error{Status: resp.StatusCode, Message: "event feed rejected the session"}
			if resp.Body != nil {
				_ = json.NewDecoder(resp.Body).Decode(apiErr)
				resp.Body.Close()
			}
			c.forgetRejected(apiErr)
			return apiErr
		}
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var evt Event
		if err := conn.ReadJSON(&evt); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fn(evt)
	}
}

// authed sends the stored token. A token the server refuses is forgotten.
func (c *Client) authed(ctx context.Context, method, path string, in, out any) error {
	s, err := c.holder.Current()
	if err != nil {
		return err
	}
	err = c.base.do(ctx, method, path, s.Token, in, out)
	var apiErr *Error
	if errors.As(err, &apiErr) {
		c.forgetRejected(apiErr)
	}
	return err
}

// forgetRejected drops the token on guard failures. 400 alone is not enough,
// field validation uses it too.
func (c *Client) forgetRejected(apiErr *Error) {
	if apiErr.Status == http.StatusUnauthorized || apiErr.Code == "invalid_token" {
		_ = c.holder.Clear()
	}
}
