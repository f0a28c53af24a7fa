package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Kosench/go-link-shortener/internal/model"
)

const DefaultQueue = "link_clicks"

var errMalformedEvent = errors.New("click event without link id")

// ClickEvent - сообщение о переходе по короткой ссылке
type ClickEvent struct {
	LinkID    int64     `json:"link_id"`
	ShortCode string    `json:"short_code"`
	ClickedAt time.Time `json:"clicked_at"`
}

func NewClickEvent(link *model.Link, at time.Time) ClickEvent {
	return ClickEvent{
		LinkID:    link.ID,
		ShortCode: link.ShortCode,
		ClickedAt: at.UTC(),
	}
}

func decodeClickEvent(body []byte) (ClickEvent, error) {
	var event ClickEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return ClickEvent{}, err
	}
	if event.LinkID <= 0 {
		return ClickEvent{}, errMalformedEvent
	}
	return event, nil
}
