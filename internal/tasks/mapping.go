package tasks

import (
	"fmt"
	"strings"

	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/shared"
)

// ArticleSupertagID is the default classification tag applied to every document.
const ArticleSupertagID = "Jv6WSsH6CO7u"

// Attribute ids of the article supertag, in emitted order.
const (
	FieldBookmarkID  = "1IJSCbcJ-4x6"
	FieldTitle       = "TAuNkyKd4gv4"
	FieldDescription = "kmEPGZ9RM0hA"
	FieldAITags      = "aosg60mUhj0s"
	FieldSourceURL   = "1Q0LdvnE7q7a"
	FieldArchiveID   = "zENeYHbvA6f4"
	FieldArchiveURL  = "jO0i0yhryT7J"
	FieldCreatedAt   = "hrTDjcwTMcyo"
)

// Length caps applied by [shared.CleanText].
const (
	MaxTitleLength       = 1000
	MaxDescriptionLength = 8000
	MaxTagsLength        = 1000
)

// ArchiveLinker builds archive URLs. It is satisfied by [services.Source].
type ArchiveLinker interface {
	ArchiveURL(assetID string) string
}

// BuildDocument maps a bookmark onto the fixed article shape: a named node carrying the supertag and exactly
// eight fields, each emitted even when empty.
func BuildDocument(b *models.Bookmark, links ArchiveLinker, supertagID string) (*models.PlainNode, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if supertagID == "" {
		supertagID = ArticleSupertagID
	}

	title := shared.CleanText(b.DisplayTitle(), MaxTitleLength)

	archiveURL := ""
	if id := b.Content.FullPageArchiveAssetID; id != "" {
		archiveURL = links.ArchiveURL(id)
	}

	values := []struct {
		attribute string
		value     models.Value
	}{
		{FieldBookmarkID, models.Text(b.ID)},
		{FieldTitle, models.Text(title)},
		{FieldDescription, models.Text(shared.CleanText(b.Description(), MaxDescriptionLength))},
		{FieldAITags, models.Text(shared.CleanText(strings.Join(b.AITagNames(), ", "), MaxTagsLength))},
		{FieldSourceURL, models.URL(b.Content.URL)},
		{FieldArchiveID, models.Text(b.Content.FullPageArchiveAssetID)},
		{FieldArchiveURL, models.URL(archiveURL)},
		{FieldCreatedAt, models.Text(b.CreatedAt)},
	}

	children := make([]models.Child, 0, len(values))
	for _, v := range values {
		field, err := models.NewField(v.attribute, v.value)
		if err != nil {
			return nil, fmt.Errorf("bookmark %s: %w", b.ID, err)
		}
		children = append(children, field)
	}

	doc, err := models.NewDocument(title, []string{supertagID}, children...)
	if err != nil {
		return nil, fmt.Errorf("bookmark %s: %w", b.ID, err)
	}
	return doc, nil
}
