package models

// User is an authenticated identity.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Stats are the cumulative reading statistics kept on a user's profile.
type Stats struct {
	ChaptersRead     int    `json:"chaptersRead"`
	NotesCount       int    `json:"notesCount"`
	StreakDays       int    `json:"streakDays"`
	LastActivityDate string `json:"lastActivityDate,omitempty"` // YYYY-MM-DD
}

// Profile is the remote profile record of a user.
type Profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Stats  Stats  `json:"stats"`
}

// Role is the author of a chat message.
type Role string

// Chat roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one entry of the chat history.
type ChatMessage struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// View is the top-level screen the UI should show.
type View string

// Views.
const (
	ViewReader    View = "reader"
	ViewDashboard View = "dashboard"
	ViewMap       View = "map"
)
