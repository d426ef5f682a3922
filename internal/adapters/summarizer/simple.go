package summarizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"tgfeed/internal/domain"
)

const (
	simpleHeadlineWords = 12
	simpleHeadlineRunes = 80
	simplePerChannel    = 5
)

// SimpleSummarizer реализует доменный интерфейс Summarizer эвристикой без LLM.
type SimpleSummarizer struct{}

// NewSimple создаёт Summarizer.
func NewSimple() *SimpleSummarizer {
	return &SimpleSummarizer{}
}

// Summarize группирует сообщения по каналам и берёт по заголовку из каждого поста.
func (s *SimpleSummarizer) Summarize(_ context.Context, messages []domain.MessageData) (string, error) {
	if len(messages) == 0 {
		return EmptyInput, nil
	}
	order := make([]string, 0)
	byChannel := make(map[string][]string)
	for _, m := range messages {
		headline := headlineOf(m.Text)
		if headline == "" {
			continue
		}
		if _, ok := byChannel[m.ChannelHandle]; !ok {
			order = append(order, m.ChannelHandle)
		}
		byChannel[m.ChannelHandle] = append(byChannel[m.ChannelHandle], headline)
	}
	if len(order) == 0 {
		return EmptyOutput, nil
	}

	var b strings.Builder
	for i, handle := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		headlines := byChannel[handle]
		fmt.Fprintf(&b, "@%s (%d):\n", handle, len(headlines))
		for j, h := range headlines {
			if j == simplePerChannel {
				fmt.Fprintf(&b, "• …ещё %d\n", len(headlines)-simplePerChannel)
				break
			}
			fmt.Fprintf(&b, "• %s\n", h)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func headlineOf(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	words := strings.Fields(text)
	headline := strings.Join(words[:min(len(words), simpleHeadlineWords)], " ")
	return truncate(headline, simpleHeadlineRunes)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
