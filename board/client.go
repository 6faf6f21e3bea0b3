// Package board talks to the whiteboard REST API and turns board items into
// prompt text.
package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"miro_ideation_relay/logging"
)

const (
	itemsPath  = "/v2/boards/{boardId}/items"
	itemPath   = "/v2/boards/{boardId}/items/{itemId}"
	imagesPath = "/v2/boards/{boardId}/images"

	pageLimit = 50
	maxPages  = 200
)

// StatusError is a non-success answer from the board API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("board %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client is a bearer-token authenticated board API client.
type Client struct {
	http   *resty.Client
	logger *logging.Logger

	ListTimeout   time.Duration
	ItemTimeout   time.Duration
	UploadTimeout time.Duration
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL, token string, logger *logging.Logger) *Client {
	h := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Accept", "application/json")
	return &Client{
		http:          h,
		logger:        logger,
		ListTimeout:   10 * time.Second,
		ItemTimeout:   8 * time.Second,
		UploadTimeout: 30 * time.Second,
	}
}

type itemsPage struct {
	Data   []Item `json:"data"`
	Cursor string `json:"cursor"`
}

// Walk calls fn for every item on the board, one page at a time, until fn
// returns false or there are no more pages.
func (c *Client) Walk(ctx context.Context, boardID string, fn func(Item) bool) error {
	cursor := ""
	for page := 0; page < maxPages; page++ {
		var out itemsPage
		if err := c.listPage(ctx, boardID, cursor, &out); err != nil {
			return err
		}
		for _, it := range out.Data {
			if !fn(it) {
				return nil
			}
		}
		if out.Cursor == "" || out.Cursor == cursor {
			return nil
		}
		cursor = out.Cursor
	}
	c.logger.Warnf("board %s: stopped listing after %d pages", boardID, maxPages)
	return nil
}

func (c *Client) listPage(ctx context.Context, boardID, cursor string, out *itemsPage) error {
	ctx, cancel := context.WithTimeout(ctx, c.ListTimeout)
	defer cancel()

	req := c.http.R().
		SetContext(ctx).
		SetPathParam("boardId", boardID).
		SetQueryParam("limit", strconv.Itoa(pageLimit))
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}
	resp, err := req.Get(itemsPath)
	if err != nil {
		return fmt.Errorf("list board items: %w", err)
	}
	if !resp.IsSuccess() {
		return statusError("list items", resp)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode board items: %w", err)
	}
	return nil
}

// Item fetches a single board item.
func (c *Client) Item(ctx context.Context, boardID, itemID string) (Item, error) {
	ctx, cancel := context.WithTimeout(ctx, c.ItemTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("boardId", boardID).
		SetPathParam("itemId", itemID).
		Get(itemPath)
	if err != nil {
		return Item{}, fmt.Errorf("get board item %s: %w", itemID, err)
	}
	if !resp.IsSuccess() {
		return Item{}, statusError("get item", resp)
	}
	var it Item
	if err := json.Unmarshal(resp.Body(), &it); err != nil {
		return Item{}, fmt.Errorf("decode board item %s: %w", itemID, err)
	}
	return it, nil
}

// ImageUpload is one image to create on the board.
type ImageUpload struct {
	Image     []byte
	FileName  string
	Placement Placement
	Title     string
}

type createdItem struct {
	ID string `json:"id"`
}

// UploadImage creates an image element from raw bytes and returns its id.
// The multipart body is built from up.Image on every call, so retrying with
// the same upload is safe.
func (c *Client) UploadImage(ctx context.Context, boardID string, up ImageUpload) (string, error) {
	position, err := json.Marshal(up.Placement.Position)
	if err != nil {
		return "", err
	}
	geometry, err := json.Marshal(up.Placement.Geometry)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(map[string]string{"title": up.Title})
	if err != nil {
		return "", err
	}
	name := up.FileName
	if name == "" {
		name = "image.png"
	}

	ctx, cancel := context.WithTimeout(ctx, c.UploadTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("boardId", boardID).
		SetMultipartField("resource", name, "image/png", bytes.NewReader(up.Image)).
		SetMultipartFormData(map[string]string{
			"position": string(position),
			"geometry": string(geometry),
			"data":     string(data),
		}).
		Post(imagesPath)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if !resp.IsSuccess() {
		return "", statusError("upload image", resp)
	}
	var out createdItem
	// some deployments answer 202 with an empty body
	_ = json.Unmarshal(resp.Body(), &out)
	return out.ID, nil
}

func statusError(op string, resp *resty.Response) *StatusError {
	body := resp.String()
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return &StatusError{Op: op, StatusCode: resp.StatusCode(), Body: body}
}
