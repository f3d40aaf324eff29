package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/trackr/internal/domain"
)

// GetBook returns the canonical book record
func (c *Client) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	path, err := idPath("/books/", bookID)
	if err != nil {
		return nil, err
	}
	var book domain.Book
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// SearchBooks returns a page of books matching query
func (c *Client) SearchBooks(ctx context.Context, query string, offset, limit int) ([]domain.Book, int, error) {
	params := pageQuery(offset, limit)
	params.Set("q", query)
	var page domain.Page[domain.Book]
	if err := c.do(ctx, http.MethodGet, "/books", params, nil, &page); err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

// GetMyBooks returns a page of the current user's tracked books
func (c *Client) GetMyBooks(ctx context.Context, offset, limit int) ([]domain.TrackedBook, int, error) {
	var page domain.Page[trackedBookDTO]
	if err := c.do(ctx, http.MethodGet, "/me/books", pageQuery(offset, limit), nil, &page); err != nil {
		return nil, 0, err
	}
	books := make([]domain.TrackedBook, 0, len(page.Items))
	for _, item := range page.Items {
		books = append(books, item.toDomain())
	}
	return books, page.Total, nil
}

// TrackBook starts tracking a book
func (c *Client) TrackBook(ctx context.Context, bookID string) error {
	path, err := idPath("/me/books/", bookID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

// UntrackBook stops tracking a book
func (c *Client) UntrackBook(ctx context.Context, bookID string) error {
	path, err := idPath("/me/books/", bookID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// UpdateTracking patches tracking fields and returns the full updated record
func (c *Client) UpdateTracking(ctx context.Context, bookID string, update domain.TrackingUpdate) (*domain.TrackedBook, error) {
	path, err := idPath("/me/books/", bookID)
	if err != nil {
		return nil, err
	}
	var dto trackedBookDTO
	if err := c.do(ctx, http.MethodPatch, path, nil, update, &dto); err != nil {
		return nil, err
	}
	tb := dto.toDomain()
	if tb.Book.ID == "" {
		tb.Book.ID = bookID
	}
	return &tb, nil
}

// ContainsBook returns the tracking record for a book, or nil if untracked
func (c *Client) ContainsBook(ctx context.Context, bookID string) (*domain.BookTracking, error) {
	path, err := idPath("/me/books/contains/", bookID)
	if err != nil {
		return nil, err
	}
	var resp containsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Tracking {
		return nil, nil
	}
	if resp.TrackingStatus == nil {
		return &domain.BookTracking{Status: domain.StatusPlanToRead}, nil
	}
	return resp.TrackingStatus, nil
}

// GetCategories returns a page of categories
func (c *Client) GetCategories(ctx context.Context, offset, limit int) ([]domain.Category, int, error) {
	var page domain.Page[domain.Category]
	if err := c.do(ctx, http.MethodGet, "/categories", pageQuery(offset, limit), nil, &page); err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

// GetCategory returns a category with its books
func (c *Client) GetCategory(ctx context.Context, categoryID string) (*domain.Category, error) {
	path, err := idPath("/categories/", categoryID)
	if err != nil {
		return nil, err
	}
	var category domain.Category
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// GetLists returns a page of public lists
func (c *Client) GetLists(ctx context.Context, offset, limit int) ([]domain.List, int, error) {
	var page domain.Page[domain.List]
	if err := c.do(ctx, http.MethodGet, "/lists", pageQuery(offset, limit), nil, &page); err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

// GetMyLists returns a page of the current user's lists
func (c *Client) GetMyLists(ctx context.Context, offset, limit int) ([]domain.List, int, error) {
	var page domain.Page[domain.List]
	if err := c.do(ctx, http.MethodGet, "/me/lists", pageQuery(offset, limit), nil, &page); err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

// GetList returns a list with its books
func (c *Client) GetList(ctx context.Context, listID string) (*domain.ListDetail, error) {
	path, err := idPath("/lists/", listID)
	if err != nil {
		return nil, err
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.detail(), nil
}

// CreateList creates a list owned by the current user
func (c *Client) CreateList(ctx context.Context, list domain.NewList) (*domain.List, error) {
	if strings.TrimSpace(list.Name) == "" {
		return nil, fmt.Errorf("list name is required")
	}
	var created domain.List
	if err := c.do(ctx, http.MethodPost, "/lists", nil, list, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// AddBookToList adds a book to a list
func (c *Client) AddBookToList(ctx context.Context, listID, bookID string) error {
	path, err := listBookPath(listID, bookID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

// RemoveBookFromList removes a book from a list
func (c *Client) RemoveBookFromList(ctx context.Context, listID, bookID string) error {
	path, err := listBookPath(listID, bookID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func idPath(prefix, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.ErrInvalidID
	}
	return prefix + url.PathEscape(id), nil
}

func listBookPath(listID, bookID string) (string, error) {
	listPath, err := idPath("/lists/", listID)
	if err != nil {
		return "", err
	}
	bookPath, err := idPath("/books/", bookID)
	if err != nil {
		return "", err
	}
	return listPath + bookPath, nil
}

func pageQuery(offset, limit int) url.Values {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return query
}
