// Package stream presents one eagerly fetched batch of pools as an ordered
// sequence of push events framed for Server-Sent Events.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/wyntrades-ai/defi-yields-mcp/internal/model"
)

// Status tags an Event.
type Status string

// Event statuses, in the order a stream produces them.
const (
	StatusFetching  Status = "fetching"
	StatusData      Status = "data"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// FetchingMessage is carried by the opening event.
const FetchingMessage = "Fetching yield pools..."

// Event is one stream record. Only the fields belonging to its Status are encoded.
type Event struct {
	Status  Status
	Message string
	Index   int
	Total   int
	Pool    model.YieldPool
	Error   string
}

// Fetching returns the opening event
func Fetching() Event {
	return Event{Status: StatusFetching, Message: FetchingMessage}
}

// Data returns the event for the pool at index out of total
func Data(index, total int, pool model.YieldPool) Event {
	return Event{Status: StatusData, Index: index, Total: total, Pool: pool}
}

// Completed returns the terminal success event
func Completed(total int) Event {
	return Event{Status: StatusCompleted, Total: total}
}

// Failed returns the terminal failure event
func Failed(err error) Event {
	return Event{Status: StatusError, Error: err.Error()}
}

// IsTerminal reports whether no event may follow e
func (e Event) IsTerminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusError
}

// MarshalJSON emits the per-status wire shape
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Status {
	case StatusFetching:
		return json.Marshal(struct {
			Status  Status `json:"status"`
			Message string `json:"message"`
		}{e.Status, e.Message})
	case StatusData:
		return json.Marshal(struct {
			Status Status          `json:"status"`
			Index  int             `json:"index"`
			Total  int             `json:"total"`
			Pool   model.YieldPool `json:"pool"`
		}{e.Status, e.Index, e.Total, e.Pool})
	case StatusCompleted:
		return json.Marshal(struct {
			Status Status `json:"status"`
			Total  int    `json:"total"`
		}{e.Status, e.Total})
	case StatusError:
		return json.Marshal(struct {
			Status Status `json:"status"`
			Error  string `json:"error"`
		}{e.Status, e.Error})
	default:
		return nil, fmt.Errorf("unknown stream status %q", e.Status)
	}
}
