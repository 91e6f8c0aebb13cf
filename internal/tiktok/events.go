package tiktok

// User identifies the audience member behind an interaction event.
type User struct {
	UniqueID      string `json:"unique_id"`
	Nickname      string `json:"nickname"`
	FollowerCount int64  `json:"follower_count"`
}

// Event is one typed occurrence received from a live stream. The concrete
// types below are the full set a Conn may deliver; anything the bridge does
// not recognize arrives as UnknownEvent so callers can count it without
// guessing at its shape.
type Event interface {
	kind() string
}

// CommentEvent is a chat message.
type CommentEvent struct {
	User    User   `json:"user"`
	Comment string `json:"comment"`
}

// GiftEvent is a virtual gift, possibly part of a streak.
type GiftEvent struct {
	User        User   `json:"user"`
	GiftName    string `json:"gift_name"`
	RepeatCount int    `json:"repeat_count"`
	Streakable  bool   `json:"streakable"`
	Streaking   bool   `json:"streaking"`
}

// FollowEvent is a viewer following the broadcaster.
type FollowEvent struct {
	User        User  `json:"user"`
	FollowCount int64 `json:"follow_count"`
	ShareType   int   `json:"share_type"`
	Action      int   `json:"action"`
}

// ShareEvent is a viewer sharing the stream.
type ShareEvent struct {
	User        User   `json:"user"`
	ShareType   int    `json:"share_type"`
	ShareTarget string `json:"share_target"`
	ShareCount  int    `json:"share_count"`
	UsersJoined int    `json:"users_joined"`
	Action      int    `json:"action"`
}

// JoinEvent is a viewer entering the room.
type JoinEvent struct {
	User              User   `json:"user"`
	Count             int    `json:"count"`
	IsTopUser         bool   `json:"is_top_user"`
	EnterType         int    `json:"enter_type"`
	Action            int    `json:"action"`
	UserShareType     string `json:"user_share_type"`
	ClientEnterSource string `json:"client_enter_source"`
}

// StreamEndEvent signals the broadcast finished normally.
type StreamEndEvent struct {
	Reason string `json:"reason"`
}

// StreamErrorEvent signals the event feed failed mid-stream.
type StreamErrorEvent struct {
	Err error
}

// UnknownEvent carries an event type the client does not model.
type UnknownEvent struct {
	Type string
}

func (CommentEvent) kind() string     { return "comment" }
func (GiftEvent) kind() string        { return "gift" }
func (FollowEvent) kind() string      { return "follow" }
func (ShareEvent) kind() string       { return "share" }
func (JoinEvent) kind() string        { return "join" }
func (StreamEndEvent) kind() string   { return "stream_end" }
func (StreamErrorEvent) kind() string { return "stream_error" }
func (e UnknownEvent) kind() string   { return e.Type }
