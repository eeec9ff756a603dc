package homie

// QueueItem is one entry of a player queue as rendered by the dashboard.
// QueueItemID is empty for items derived from the player abstraction in
// limited mode; delete and move require it.
type QueueItem struct {
	QueueItemID string  `json:"queue_item_id,omitempty"`
	Name        string  `json:"name"`
	Duration    float64 `json:"duration,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	Album       string  `json:"album,omitempty"`
	ImagePath   string  `json:"image_path,omitempty"`
}

// QueueSnapshot is the queue view returned by GET /api/music/queue.
// Limited marks a degraded snapshot built only from the current and next
// items; delete and reorder are unavailable against it.
type QueueSnapshot struct {
	Queue    []QueueItem `json:"queue"`
	Position int         `json:"position"`
	Total    int         `json:"total"`
	Limited  bool        `json:"limited"`
}

// ActiveQueue is what the player abstraction reports for a player's queue.
type ActiveQueue struct {
	QueueID      string
	CurrentIndex int
	Items        int
	Current      *QueueItem
	Next         *QueueItem
}

// PlayerStatus mirrors GET /api/music/status.
type PlayerStatus struct {
	State  string `json:"state"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

// VolumeStatus reports the player volume. Source identifies where the
// value came from: "cache" or "player".
type VolumeStatus struct {
	Level  float64 `json:"level"`
	Muted  bool    `json:"muted"`
	Source string  `json:"source"`
}

// ReorderRequest is the body of POST /api/music/queue/reorder.
type ReorderRequest struct {
	FromIndex int `json:"from_index"`
	ToIndex   int `json:"to_index"`
}

// RemoveRequest is the body of DELETE /api/music/queue.
type RemoveRequest struct {
	QueueItemID string `json:"queue_item_id"`
}

// EnqueueRequest is the body of POST /api/music/queue.
type EnqueueRequest struct {
	Track  string `json:"track"`
	Artist string `json:"artist,omitempty"`
}

// ControlRequest is the body of POST /api/music/control. Action is one of
// play, pause, play_pause, stop, next, previous.
type ControlRequest struct {
	Action string `json:"action"`
}

// SeekRequest is the body of POST /api/music/seek. Position is seconds.
type SeekRequest struct {
	Position float64 `json:"position"`
}

// VolumeRequest is the body of POST /api/music/volume. Level is 0..1.
type VolumeRequest struct {
	Level float64 `json:"volume"`
}

// StatusResponse acknowledges a successful mutation.
type StatusResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse carries a user-visible error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
