package domain

// ChatKind distinguishes a direct message from a group chat.
type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
)

// InputKind classifies what an inbound event carries.
type InputKind string

const (
	InputText    InputKind = "text"
	InputPhoto   InputKind = "photo"
	InputChoice  InputKind = "choice"
	InputCommand InputKind = "command"
)

// Event is one inbound actor action delivered by the transport: free text,
// an uploaded photo, an inline button press, or a slash command.
type Event struct {
	ActorID  int64    `json:"actor_id"`
	Username string   `json:"username,omitempty"`
	ChatID   int64    `json:"chat_id"`
	ChatKind ChatKind `json:"chat_kind"`

	Text    string   `json:"text,omitempty"`
	Photo   []byte   `json:"photo,omitempty"`
	Choice  string   `json:"choice,omitempty"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// Kind reports the input shape of the event. Commands win over text so a
// stray "/cancel" is never consumed as a step answer.
func (e Event) Kind() InputKind {
	switch {
	case e.Command != "":
		return InputCommand
	case e.Choice != "":
		return InputChoice
	case len(e.Photo) > 0:
		return InputPhoto
	default:
		return InputText
	}
}

// SessionKey returns the session key addressed by this event.
func (e Event) SessionKey() string {
	return SessionKey(e.ActorID, e.ChatID)
}
