package summarizer

import (
	"fmt"
	"strings"

	"tgfeed/internal/domain"
)

const (
	// EmptyInput возвращается без обращения к провайдеру.
	EmptyInput = "No messages to summarize."
	// EmptyOutput подставляется, если провайдер вернул пустой ответ.
	EmptyOutput = "No summary generated."

	promptHeader = "Summarize the following Telegram channel messages. They are news. Group by topic if possible. Be concise:"
	dateLayout   = "2006-01-02 15:04:05 UTC"
)

// BuildPrompt собирает запрос к модели из сообщений каналов.
func BuildPrompt(messages []domain.MessageData) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, fmt.Sprintf("@%s (%s):\n%s", m.ChannelHandle, m.Date.UTC().Format(dateLayout), m.Text))
	}
	return promptHeader + "\n\n" + strings.Join(parts, "\n\n")
}

func wrap(provider string, err error) error {
	return &domain.SummarizerError{Provider: provider, Err: err}
}
