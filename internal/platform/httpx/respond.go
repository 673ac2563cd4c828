package httpx

import (
	"encoding/json"
	"net/http"
)

// Pagination is the paging block attached to list responses.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPagination derives the paging block from a page request and the
// total matching row count.
func NewPagination(page, limit int, totalCount int64) Pagination {
	if limit <= 0 {
		limit = 1
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
		Limit:       limit,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1 && totalPages > 0,
	}
}

type envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// WriteData writes a successful envelope carrying data only.
func WriteData(w http.ResponseWriter, status int, data any) {
	write(w, status, envelope{Success: true, Data: data})
}

// WriteMessage writes a successful envelope with a human-readable message.
func WriteMessage(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, envelope{Success: true, Message: sanitize(message, 512), Data: data})
}

// WriteList writes a successful envelope with paging metadata.
func WriteList(w http.ResponseWriter, status int, data any, pagination Pagination) {
	write(w, status, envelope{Success: true, Data: data, Pagination: &pagination})
}

func write(w http.ResponseWriter, status int, body envelope) {
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
