package domain

// Button is one inline keyboard option. Choice is echoed back verbatim in
// the resulting Event.
type Button struct {
	Label  string `json:"label"`
	Choice string `json:"choice"`
}

// Message is one outbound send: text, an optional photo, and an optional
// inline keyboard (one button per row, matching the transport's layout).
type Message struct {
	ChatID  int64    `json:"chat_id"`
	Text    string   `json:"text,omitempty"`
	Photo   []byte   `json:"photo,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`
}

// Reply builds a plain text message.
func Reply(chatID int64, text string) Message {
	return Message{ChatID: chatID, Text: text}
}

// ReplyWithButtons builds a text message with an inline keyboard.
func ReplyWithButtons(chatID int64, text string, buttons ...Button) Message {
	return Message{ChatID: chatID, Text: text, Buttons: buttons}
}

// PhotoMessage builds a photo send.
func PhotoMessage(chatID int64, photo []byte) Message {
	return Message{ChatID: chatID, Photo: photo}
}
