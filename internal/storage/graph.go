package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/drivedupe/drivedupe/internal/types"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphClient talks to the Microsoft Graph API and scans the signed-in
// user's OneDrive. It is the alternate Provider implementation.
//
// Folder IDs are drive item IDs; the special ID "root" addresses the drive
// root.
type GraphClient struct {
	token   string
	baseURL string
	client  *retryablehttp.Client
	logger  *zap.Logger
}

// GraphOption configures a GraphClient.
type GraphOption func(*GraphClient)

// WithGraphBaseURL overrides the API base URL. Used in tests.
func WithGraphBaseURL(u string) GraphOption {
	return func(c *GraphClient) { c.baseURL = u }
}

// NewGraphClient creates a client authenticated with the given access token.
func NewGraphClient(token string, logger *zap.Logger, opts ...GraphOption) *GraphClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	c := &GraphClient{
		token:   token,
		baseURL: graphBaseURL,
		client:  client,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// graphItem is the subset of drive item metadata the scanner needs.
// The File/Folder facets distinguish files from folders.
type graphItem struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Size         int64           `json:"size"`
	LastModified string          `json:"lastModifiedDateTime"`
	WebURL       string          `json:"webUrl"`
	File         *graphFileFacet `json:"file"`
	Folder       *struct{}       `json:"folder"`
}

type graphFileFacet struct {
	MimeType string `json:"mimeType"`
}

type graphChildren struct {
	Value    []graphItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

func (c *GraphClient) do(ctx context.Context, method, path string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &ProviderError{StatusCode: 0, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthExpired
	}
	if resp.StatusCode >= 400 {
		return &ProviderError{StatusCode: resp.StatusCode, Message: graphErrorMessage(resp.Body)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// graphErrorMessage extracts error.message from a Graph error body,
// falling back to the raw body text.
func graphErrorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(raw)
}

// childrenPath returns the children endpoint for a folder ID.
func childrenPath(folderID string) string {
	if folderID == "root" {
		return "/me/drive/root/children"
	}
	return "/me/drive/items/" + url.PathEscape(folderID) + "/children"
}

// ListFiles traverses the given folders breadth-first, deduplicating folder
// visits by ID, and returns all downloadable files found.
func (c *GraphClient) ListFiles(ctx context.Context, folderIDs []string, recurse bool) ([]*types.File, error) {
	var files []*types.File
	queue := append([]string(nil), folderIDs...)
	visited := make(map[string]struct{})

	for len(queue) > 0 {
		folderID := queue[0]
		queue = queue[1:]
		if _, ok := visited[folderID]; ok {
			continue
		}
		visited[folderID] = struct{}{}

		path := childrenPath(folderID)
		for path != "" {
			var page graphChildren
			if err := c.do(ctx, http.MethodGet, path, &page); err != nil {
				return nil, fmt.Errorf("list folder %s: %w", folderID, err)
			}

			for _, item := range page.Value {
				switch {
				case item.Folder != nil:
					if recurse {
						if _, ok := visited[item.ID]; !ok {
							queue = append(queue, item.ID)
						}
					}
				case item.File != nil:
					if item.Size <= 0 {
						c.logger.Info("skipping file without byte stream",
							zap.String("name", item.Name))
						continue
					}
					files = append(files, &types.File{
						ID:           item.ID,
						Name:         item.Name,
						Size:         item.Size,
						MimeType:     item.File.MimeType,
						LastModified: item.LastModified,
						WebURL:       item.WebURL,
						Source:       "OneDrive",
					})
				}
			}

			path = strings.TrimPrefix(page.NextLink, c.baseURL)
		}
	}

	c.logger.Info("graph listing complete",
		zap.Int("files", len(files)), zap.Int("folders", len(visited)))
	return files, nil
}

// Fetch downloads the full content of a file. Graph answers with a redirect
// to a pre-authenticated download URL; the HTTP client follows it.
func (c *GraphClient) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, contentTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodGet,
		c.baseURL+"/me/drive/items/"+url.PathEscape(fileID)+"/content", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderError{StatusCode: 0, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrAuthExpired
	}
	if resp.StatusCode >= 400 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: graphErrorMessage(resp.Body)}
	}
	return io.ReadAll(resp.Body)
}

// Delete removes a drive item. A plain DELETE moves the item to the recycle
// bin (soft delete); permanent removal uses the permanentDelete action.
func (c *GraphClient) Delete(ctx context.Context, fileID string, permanent bool) error {
	if permanent {
		return c.do(ctx, http.MethodPost, "/me/drive/items/"+url.PathEscape(fileID)+"/permanentDelete", nil)
	}
	return c.do(ctx, http.MethodDelete, "/me/drive/items/"+url.PathEscape(fileID), nil)
}

// Restore recovers a drive item from the recycle bin.
func (c *GraphClient) Restore(ctx context.Context, fileID string) error {
	return c.do(ctx, http.MethodPost, "/me/drive/items/"+url.PathEscape(fileID)+"/restore", nil)
}
