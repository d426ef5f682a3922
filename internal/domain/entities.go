package domain

import "time"

// User описывает запись списка доступа.
type User struct {
	TelegramID int64
	Allowed    bool
}

// ChannelMeta содержит метаданные канала, полученные через MTProto.
type ChannelMeta struct {
	ID         int64
	AccessHash int64
	Handle     string
	Title      string
}

// Subscription хранит подписку пользователя на канал.
// ChannelHandle кэширует текущий публичный алиас канала и может устареть после переименования.
type Subscription struct {
	UserID        int64
	ChannelID     int64
	ChannelHandle string
	SubscribedAt  time.Time
}

// StoredMessage представляет сохранённый пост канала.
type StoredMessage struct {
	ChannelID  int64
	MessageID  int
	Text       string
	ReceivedAt time.Time
}

// SummarizeState хранит момент последней суммаризации пользователя.
type SummarizeState struct {
	UserID           int64
	LastSummarizedAt time.Time
}

// TextRangeKind повторяет типы сущностей Bot API.
type TextRangeKind string

const (
	TextBold          TextRangeKind = "bold"
	TextItalic        TextRangeKind = "italic"
	TextCode          TextRangeKind = "code"
	TextPre           TextRangeKind = "pre"
	TextUnderline     TextRangeKind = "underline"
	TextStrikethrough TextRangeKind = "strikethrough"
	TextLink          TextRangeKind = "text_link"
	TextSpoiler       TextRangeKind = "spoiler"
	TextMention       TextRangeKind = "mention"
	TextHashtag       TextRangeKind = "hashtag"
	TextURL           TextRangeKind = "url"
)

// TextRange адресует фрагмент текста для форматирования.
// Offset и Length измеряются в UTF-16 code units.
type TextRange struct {
	Kind     TextRangeKind `json:"kind"`
	Offset   int           `json:"offset"`
	Length   int           `json:"length"`
	URL      string        `json:"url,omitempty"`
	Language string        `json:"language,omitempty"`
}

// InboundPost — новое сообщение из потока обновлений MTProto.
type InboundPost struct {
	ChannelID     int64
	ChannelHandle string
	MessageID     int
	Text          string
	Entities      []TextRange
	IsChannel     bool
	Outgoing      bool
}

// RelayEvent — одноразовое уведомление о посте, который нужно доставить подписчикам.
type RelayEvent struct {
	ChannelID     int64       `json:"channel_id"`
	ChannelHandle string      `json:"channel_handle"`
	MessageID     int         `json:"message_id"`
	Text          string      `json:"text"`
	Subscribers   []int64     `json:"subscribers"`
	Entities      []TextRange `json:"entities,omitempty"`
}

// MessageData — элемент входа суммаризатора.
type MessageData struct {
	ChannelHandle string
	Text          string
	Date          time.Time
}

// SummaryResult содержит результат команды суммаризации.
type SummaryResult struct {
	Text  string
	Count int
	Since time.Time
}
