package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/drivedupe/drivedupe/internal/types"
)

const (
	driveBaseURL    = "https://www.googleapis.com/drive/v3"
	driveFolderMime = "application/vnd.google-apps.folder"
	drivePageSize   = 1000
)

// DriveClient talks to the Google Drive v3 API. It is the primary Provider.
type DriveClient struct {
	token   string
	baseURL string
	client  *retryablehttp.Client
	logger  *zap.Logger
}

// DriveOption configures a DriveClient.
type DriveOption func(*DriveClient)

// WithDriveBaseURL overrides the API base URL. Used in tests.
func WithDriveBaseURL(u string) DriveOption {
	return func(c *DriveClient) { c.baseURL = u }
}

// NewDriveClient creates a client authenticated with the given access token.
func NewDriveClient(token string, logger *zap.Logger, opts ...DriveOption) *DriveClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	c := &DriveClient{
		token:   token,
		baseURL: driveBaseURL,
		client:  client,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// driveItem is the subset of Drive file metadata the scanner needs.
type driveItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         string `json:"size"` // Drive returns size as a decimal string
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime"`
	WebViewLink  string `json:"webViewLink"`
}

type driveFileList struct {
	NextPageToken string      `json:"nextPageToken"`
	Files         []driveItem `json:"files"`
}

// do performs one metadata API request and maps failure statuses to error
// kinds. A nil out skips body decoding (DELETE returns 204, empty body).
func (c *DriveClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, method, c.baseURL+path, body)
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
		return &ProviderError{StatusCode: resp.StatusCode, Message: driveErrorMessage(resp.Body)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// driveErrorMessage extracts error.message from a Drive error body,
// falling back to the raw body text.
func driveErrorMessage(body io.Reader) string {
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

// ListFiles traverses the given folders breadth-first, deduplicating folder
// visits by ID, and returns all downloadable files found.
func (c *DriveClient) ListFiles(ctx context.Context, folderIDs []string, recurse bool) ([]*types.File, error) {
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

		inFolder, err := c.listFilesInFolder(ctx, folderID)
		if err != nil {
			return nil, fmt.Errorf("list folder %s: %w", folderID, err)
		}
		files = append(files, inFolder...)

		if recurse {
			subfolders, err := c.listSubfolders(ctx, folderID)
			if err != nil {
				return nil, fmt.Errorf("list subfolders of %s: %w", folderID, err)
			}
			for _, sub := range subfolders {
				if _, ok := visited[sub]; !ok {
					queue = append(queue, sub)
				}
			}
		}
	}

	c.logger.Info("drive listing complete",
		zap.Int("files", len(files)), zap.Int("folders", len(visited)))
	return files, nil
}

// listFilesInFolder lists non-folder children of one folder, all pages.
// Items without a size (Google Workspace virtual documents) have no byte
// stream to download and are skipped.
func (c *DriveClient) listFilesInFolder(ctx context.Context, folderID string) ([]*types.File, error) {
	var files []*types.File
	pageToken := ""

	for {
		query := fmt.Sprintf("'%s' in parents and trashed=false and mimeType!='%s'", folderID, driveFolderMime)
		params := url.Values{}
		params.Set("q", query)
		params.Set("fields", "nextPageToken, files(id, name, size, mimeType, modifiedTime, webViewLink)")
		params.Set("pageSize", strconv.Itoa(drivePageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page driveFileList
		if err := c.do(ctx, http.MethodGet, "/files?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Files {
			size, _ := strconv.ParseInt(item.Size, 10, 64)
			if size <= 0 {
				c.logger.Info("skipping file without byte stream",
					zap.String("name", item.Name), zap.String("mime", item.MimeType))
				continue
			}
			files = append(files, &types.File{
				ID:           item.ID,
				Name:         item.Name,
				Size:         size,
				MimeType:     item.MimeType,
				LastModified: item.ModifiedTime,
				WebURL:       item.WebViewLink,
				Source:       "Google Drive",
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return files, nil
		}
	}
}

// listSubfolders lists folder children of one folder, all pages.
func (c *DriveClient) listSubfolders(ctx context.Context, folderID string) ([]string, error) {
	var subfolders []string
	pageToken := ""

	for {
		query := fmt.Sprintf("'%s' in parents and trashed=false and mimeType='%s'", folderID, driveFolderMime)
		params := url.Values{}
		params.Set("q", query)
		params.Set("fields", "nextPageToken, files(id, name)")
		params.Set("pageSize", strconv.Itoa(drivePageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page driveFileList
		if err := c.do(ctx, http.MethodGet, "/files?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Files {
			subfolders = append(subfolders, item.ID)
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return subfolders, nil
		}
	}
}

// Fetch downloads the full content of a file.
func (c *DriveClient) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, contentTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodGet,
		c.baseURL+"/files/"+url.PathEscape(fileID)+"?alt=media", nil)
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
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: driveErrorMessage(resp.Body)}
	}
	return io.ReadAll(resp.Body)
}

// Delete removes a file: PATCH trashed=true for soft delete, DELETE for
// permanent removal.
func (c *DriveClient) Delete(ctx context.Context, fileID string, permanent bool) error {
	if permanent {
		return c.do(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, nil)
	}
	return c.do(ctx, http.MethodPatch, "/files/"+url.PathEscape(fileID),
		[]byte(`{"trashed": true}`), nil)
}

// Restore recovers a file from the trash.
func (c *DriveClient) Restore(ctx context.Context, fileID string) error {
	return c.do(ctx, http.MethodPatch, "/files/"+url.PathEscape(fileID),
		[]byte(`{"trashed": false}`), nil)
}
