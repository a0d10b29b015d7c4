package realtime

// Websocket frame ops
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpSubscribed  = "subscribed"
	OpChange      = "change"
	OpError       = "error"
)

// Frame is one websocket message in either direction. Ref identifies
// the subscription it belongs to.
type Frame struct {
	Op      string  `json:"op"`
	Ref     string  `json:"ref,omitempty"`
	Filter  *Filter `json:"filter,omitempty"`
	Change  *Change `json:"change,omitempty"`
	Message string  `json:"message,omitempty"`
}
