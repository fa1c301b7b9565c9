package testing

import (
	"context"
	"errors"
	"sync"

	"github.com/desertthunder/hoardsync/internal/models"
)

// ErrFake is returned by fakes configured to fail.
var ErrFake = errors.New("fake failure")

// FakeSource serves pages keyed by the cursor used to request them. The first page is keyed by "".
type FakeSource struct {
	mu      sync.Mutex
	Pages   map[string]*models.Page
	Fail    map[string]error
	Calls   []string
	Limits  []int
	Archive string
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		Pages:   map[string]*models.Page{},
		Fail:    map[string]error{},
		Archive: "https://hoarder.test/archive/",
	}
}

// AddPage registers bookmarks served for cursor, pointing at next.
func (f *FakeSource) AddPage(cursor, next string, bookmarks ...models.Bookmark) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pages[cursor] = &models.Page{Bookmarks: bookmarks, NextCursor: next}
	return f
}

func (f *FakeSource) FetchPage(ctx context.Context, cursor string, limit int) (*models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, cursor)
	f.Limits = append(f.Limits, limit)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.Fail[cursor]; ok {
		return nil, err
	}
	page, ok := f.Pages[cursor]
	if !ok {
		return &models.Page{}, nil
	}

	bookmarks := page.Bookmarks
	if limit > 0 && len(bookmarks) > limit {
		bookmarks = bookmarks[:limit]
	}
	return &models.Page{Bookmarks: bookmarks, NextCursor: page.NextCursor}, nil
}

func (f *FakeSource) ArchiveURL(assetID string) string { return f.Archive + assetID }

func (f *FakeSource) Name() string { return "fake-source" }

// CallCount returns how many pages were requested.
func (f *FakeSource) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// FakeTarget records submitted documents. FailOn returns an error for a document name to reject it.
type FakeTarget struct {
	mu        sync.Mutex
	Submitted []*models.PlainNode
	Attempts  int
	FailOn    func(doc *models.PlainNode) error
}

func (f *FakeTarget) Submit(ctx context.Context, doc *models.PlainNode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Attempts++

	if err := ctx.Err(); err != nil {
		return err
	}
	if f.FailOn != nil {
		if err := f.FailOn(doc); err != nil {
			return err
		}
	}
	f.Submitted = append(f.Submitted, doc)
	return nil
}

func (f *FakeTarget) Name() string { return "fake-target" }

// Names returns the display names of accepted documents in submission order.
func (f *FakeTarget) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.Submitted))
	for _, doc := range f.Submitted {
		names = append(names, doc.Name)
	}
	return names
}

// NewBookmark returns a minimal valid bookmark.
func NewBookmark(id, title, url string) models.Bookmark {
	return models.Bookmark{
		ID:        id,
		CreatedAt: "2024-05-01T12:00:00.000Z",
		Content:   models.Content{Type: "link", URL: url, Title: title},
	}
}
