// Hoarder (Karakeep) REST API [Source] implementation
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/shared"
)

const hoarderAPIPrefix = "/api/v1"

// HoarderService implements [Source] against a Hoarder instance.
type HoarderService struct {
	baseURL string
	api     *APIService
}

// NewHoarderService creates a client for the instance at baseURL. The client should carry the bearer token
// (see [NewTokenClient]); a trailing slash on baseURL is ignored.
func NewHoarderService(baseURL string, client *http.Client) (*HoarderService, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: hoarder base URL is required", shared.ErrInvalidConfig)
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: hoarder base URL %q is not absolute", shared.ErrInvalidConfig, baseURL)
	}

	return &HoarderService{
		baseURL: baseURL,
		api:     NewAPIService(baseURL+hoarderAPIPrefix, client),
	}, nil
}

func (h *HoarderService) Name() string { return "Hoarder" }

// FetchPage lists bookmarks newest first using the server's opaque cursor.
func (h *HoarderService) FetchPage(ctx context.Context, cursor string, limit int) (*models.Page, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	path := "/bookmarks"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := h.api.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceRequest, err)
	}
	if !resp.OK() {
		return nil, newAPIError(h.Name(), shared.ErrSourceRequest, resp)
	}

	var page models.Page
	if err := resp.Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceRequest, err)
	}
	return &page, nil
}

// ArchiveURL returns {base}/archive/{assetID}.
func (h *HoarderService) ArchiveURL(assetID string) string {
	return h.baseURL + "/archive/" + url.PathEscape(assetID)
}
