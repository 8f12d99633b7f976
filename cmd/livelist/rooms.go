package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livelist/internal/list/model"
)

const httpTimeout = 15 * time.Second

// roomsClient talks to the server's /rooms HTTP endpoints.
type roomsClient struct {
	server string
	http   *http.Client
}

func newRoomsClient(server string) *roomsClient {
	return &roomsClient{server: strings.TrimRight(server, "/"), http: &http.Client{Timeout: httpTimeout}}
}

func (c *roomsClient) roomURL(roomID, password, token string) string {
	q := url.Values{}
	if password != "" {
		q.Set("pwd", password)
	}
	if token != "" {
		q.Set("token", token)
	}
	u := c.server + "/rooms/" + url.PathEscape(roomID)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Seed uploads list as the content of roomID.
func (c *roomsClient) Seed(ctx context.Context, roomID string, list model.List, password, token string) (model.CreateRoomResponse, error) {
	var resp model.CreateRoomResponse
	body, err := json.Marshal(list)
	if err != nil {
		return resp, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.roomURL(roomID, password, token), bytes.NewReader(body))
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", "application/json")
	err = c.do(req, &resp)
	return resp, err
}

// Fetch returns the list stored in roomID, or nil when the room is empty.
func (c *roomsClient) Fetch(ctx context.Context, roomID string) (*model.List, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.roomURL(roomID, "", ""), nil)
	if err != nil {
		return nil, err
	}
	var list *model.List
	if err := c.do(req, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *roomsClient) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, res.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
