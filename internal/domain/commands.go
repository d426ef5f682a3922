package domain

// CommandKind перечисляет команды, которые гейтвей отправляет монитору.
type CommandKind string

const (
	CommandSubscribe   CommandKind = "subscribe"
	CommandUnsubscribe CommandKind = "unsubscribe"
	CommandList        CommandKind = "list"
	CommandSummarize   CommandKind = "summarize"
	// CommandShutdown завершает цикл монитора и не получает ответа.
	CommandShutdown CommandKind = "shutdown"
)

// Command — запрос к монитору. UserID не заполняется для Shutdown.
type Command struct {
	ID     string
	Kind   CommandKind
	UserID int64
	Handle string
}

// HasReply сообщает, ожидает ли команда ответа.
func (c Command) HasReply() bool {
	return c.Kind != CommandShutdown
}

// Reply — единый ответ монитора на любую команду.
// Err содержит пользовательскую ошибку, остальные поля заполняются по типу команды.
type Reply struct {
	Handles []string
	Summary SummaryResult
	Err     error
}

// ErrorReply формирует ответ с ошибкой.
func ErrorReply(err error) Reply {
	return Reply{Err: err}
}
