package services

// 推送给前端的事件类型
const (
	EventVote     = "vote"
	EventModerate = "moderate"
	EventNewPost  = "new_post"
)

// Event tells connected clients that cached data for a post is stale.
type Event struct {
	Type   string `json:"type"`
	PostID uint   `json:"postId"`
	Data   any    `json:"data,omitempty"`
}

// Publisher fans events out to subscribers. The websocket hub implements it.
type Publisher interface {
	Publish(Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
