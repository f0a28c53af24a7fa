package model

import "time"

type Link struct {
	ID            int64      `json:"id"`
	OriginalURL   string     `json:"original_url"`
	ShortCode     string     `json:"short_code"`
	ClickCount    int64      `json:"click_count"`
	CreatedAt     time.Time  `json:"created_at"`
	LastClickedAt *time.Time `json:"last_clicked_at"`
}

// CreateLinkRequest keeps the camelCase shortCode key the browser client sends.
type CreateLinkRequest struct {
	URL       string `json:"url"`
	ShortCode string `json:"shortCode"`
}

type LinkResponse struct {
	ID            int64      `json:"id"`
	OriginalURL   string     `json:"original_url"`
	ShortCode     string     `json:"short_code"`
	ShortURL      string     `json:"short_url"`
	ClickCount    int64      `json:"click_count"`
	CreatedAt     time.Time  `json:"created_at"`
	LastClickedAt *time.Time `json:"last_clicked_at"`
}

func NewLinkResponse(link *Link, baseURL string) *LinkResponse {
	return &LinkResponse{
		ID:            link.ID,
		OriginalURL:   link.OriginalURL,
		ShortCode:     link.ShortCode,
		ShortURL:      baseURL + "/" + link.ShortCode,
		ClickCount:    link.ClickCount,
		CreatedAt:     link.CreatedAt,
		LastClickedAt: link.LastClickedAt,
	}
}
