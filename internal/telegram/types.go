package telegram

// Bot API wire types, limited to the fields the relay reads.

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message,omitempty"`
}

type message struct {
	MessageID int64    `json:"message_id"`
	Date      int64    `json:"date,omitempty"`
	Chat      *chat    `json:"chat,omitempty"`
	From      *apiUser `json:"from,omitempty"`
	ReplyTo   *message `json:"reply_to_message,omitempty"`
	Text      string   `json:"text,omitempty"`
	Caption   string   `json:"caption,omitempty"`
}

type chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type apiUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
	ReplyToMessageID      int64  `json:"reply_to_message_id,omitempty"`
}

type getUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

type getMeResponse struct {
	OK     bool    `json:"ok"`
	Result apiUser `json:"result"`
}

type sendMessageResponse struct {
	OK          bool     `json:"ok"`
	Result      *message `json:"result,omitempty"`
	ErrorCode   int      `json:"error_code,omitempty"`
	Description string   `json:"description,omitempty"`
}
