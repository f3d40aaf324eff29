package api

import "github.com/mmcdole/trackr/internal/domain"

// trackedBookDTO is one row of /me/books: the tracking fields are flattened
// next to the nested book record.
type trackedBookDTO struct {
	Book domain.Book `json:"book"`
	domain.BookTracking
}

func (d trackedBookDTO) toDomain() domain.TrackedBook {
	var status *domain.BookTracking
	if d.Status != "" {
		tracking := d.BookTracking
		status = &tracking
	}
	return domain.NewTrackedBook(d.Book, status)
}

// containsResponse is the body of GET /me/books/contains/{id}
type containsResponse struct {
	Tracking       bool                 `json:"tracking"`
	TrackingStatus *domain.BookTracking `json:"tracking_status"`
}

// listResponse is the body of GET /lists/{id}; some deployments wrap the detail
type listResponse struct {
	domain.ListDetail
	Data *domain.ListDetail `json:"data,omitempty"`
}

func (r listResponse) detail() *domain.ListDetail {
	if r.Data != nil {
		return r.Data
	}
	d := r.ListDetail
	return &d
}
