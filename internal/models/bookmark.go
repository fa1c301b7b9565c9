package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/hoardsync/internal/shared"
)

// TagOrigin records who attached a tag to a bookmark.
type TagOrigin string

const (
	AttachedByAI    TagOrigin = "ai"
	AttachedByHuman TagOrigin = "human"
)

// UntitledBookmark is the display name used when a bookmark has no title at all.
const UntitledBookmark = "Untitled Bookmark"

// Tag is a label on a bookmark.
type Tag struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	AttachedBy TagOrigin `json:"attachedBy"`
}

// Content is the crawled link content of a bookmark.
type Content struct {
	Type                   string `json:"type"`
	URL                    string `json:"url"`
	Title                  string `json:"title"`
	Description            string `json:"description"`
	ImageURL               string `json:"imageUrl,omitempty"`
	ImageAssetID           string `json:"imageAssetId,omitempty"`
	ScreenshotAssetID      string `json:"screenshotAssetId,omitempty"`
	FullPageArchiveAssetID string `json:"fullPageArchiveAssetId,omitempty"`
	Favicon                string `json:"favicon,omitempty"`
	CrawledAt              string `json:"crawledAt,omitempty"`
}

// Asset is a file stored alongside a bookmark (screenshot, archive, banner).
type Asset struct {
	ID        string `json:"id"`
	AssetType string `json:"assetType"`
}

// Bookmark is a saved web resource as returned by the source service. ID is stable across fetches.
type Bookmark struct {
	ID            string  `json:"id"`
	CreatedAt     string  `json:"createdAt"`
	ModifiedAt    string  `json:"modifiedAt,omitempty"`
	Title         string  `json:"title"`
	Archived      bool    `json:"archived"`
	Favourited    bool    `json:"favourited"`
	TaggingStatus string  `json:"taggingStatus,omitempty"`
	Note          string  `json:"note,omitempty"`
	Summary       string  `json:"summary"`
	Tags          []Tag   `json:"tags"`
	Content       Content `json:"content"`
	Assets        []Asset `json:"assets,omitempty"`
}

// Validate checks the fields the sync depends on.
func (b *Bookmark) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("%w: id is required", shared.ErrInvalidBookmark)
	}
	if strings.TrimSpace(b.CreatedAt) == "" {
		return fmt.Errorf("%w: bookmark %s has no createdAt", shared.ErrInvalidBookmark, b.ID)
	}
	for _, tag := range b.Tags {
		if tag.AttachedBy != AttachedByAI && tag.AttachedBy != AttachedByHuman {
			return fmt.Errorf("%w: bookmark %s tag %q has unknown origin %q", shared.ErrInvalidBookmark, b.ID, tag.Name, tag.AttachedBy)
		}
	}
	return nil
}

// DisplayTitle prefers the crawled content title, then the bookmark title, then [UntitledBookmark].
func (b *Bookmark) DisplayTitle() string {
	if strings.TrimSpace(b.Content.Title) != "" {
		return b.Content.Title
	}
	if strings.TrimSpace(b.Title) != "" {
		return b.Title
	}
	return UntitledBookmark
}

// Description prefers the crawled content description over the AI summary.
func (b *Bookmark) Description() string {
	if strings.TrimSpace(b.Content.Description) != "" {
		return b.Content.Description
	}
	return b.Summary
}

// AITagNames returns names of tags attached by the AI tagger, in order.
func (b *Bookmark) AITagNames() []string {
	var names []string
	for _, tag := range b.Tags {
		if tag.AttachedBy == AttachedByAI {
			names = append(names, tag.Name)
		}
	}
	return names
}

// Page is one page of bookmarks. An empty NextCursor means there are no further pages.
type Page struct {
	Bookmarks  []Bookmark `json:"bookmarks"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// HasMore reports whether another page can be fetched.
func (p *Page) HasMore() bool {
	return p.NextCursor != ""
}
