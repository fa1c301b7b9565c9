// Tana Input API [Target] implementation
package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/shared"
	"golang.org/x/time/rate"
)

const DefaultTanaEndpoint = "https://europe-west1-tagr-prod.cloudfunctions.net/addToNodeV2"

// TanaService implements [Target] by posting documents to the Tana Input API.
//
// Requests are paced by a token bucket since the API enforces a per-token request rate.
type TanaService struct {
	api          *APIService
	targetNodeID string
	limiter      *rate.Limiter
}

// TanaOpts configures a [TanaService].
type TanaOpts struct {
	Endpoint          string
	TargetNodeID      string
	RequestsPerSecond float64 // <= 0 disables pacing
	HTTPClient        *http.Client
}

type addToNodeRequest struct {
	TargetNodeID string              `json:"targetNodeId,omitempty"`
	Nodes        []*models.PlainNode `json:"nodes"`
}

// NewTanaService creates a target client. HTTPClient should carry the API token (see [NewTokenClient]).
func NewTanaService(opts TanaOpts) *TanaService {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultTanaEndpoint
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &TanaService{
		api:          NewAPIService(opts.Endpoint, opts.HTTPClient),
		targetNodeID: opts.TargetNodeID,
		limiter:      rate.NewLimiter(limit, 1),
	}
}

func (t *TanaService) Name() string { return "Tana" }

// Submit validates doc and creates it under the configured target node.
func (t *TanaService) Submit(ctx context.Context, doc *models.PlainNode) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", shared.ErrInvalidNode)
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTargetRequest, err)
	}

	resp, err := t.api.PostJSON(ctx, "", addToNodeRequest{TargetNodeID: t.targetNodeID, Nodes: []*models.PlainNode{doc}})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTargetRequest, err)
	}
	if !resp.OK() {
		return newAPIError(t.Name(), shared.ErrTargetRequest, resp)
	}
	return nil
}
