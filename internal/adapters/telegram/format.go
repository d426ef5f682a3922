package telegram

import (
	"fmt"

	"tgfeed/internal/domain"
)

const (
	channelMarker = "📢 @"
	divider       = "──────────"
	sourceLabel   = "Source"
)

// SourceLink строит ссылку на исходный пост канала.
func SourceLink(channelID int64, messageID int) string {
	return fmt.Sprintf("https://t.me/c/%d/%d", channelID, messageID)
}

// FormatRelay собирает текст пересылки и диапазоны форматирования для него.
// Смещения считаются по итоговому тексту в UTF-16 code units.
func FormatRelay(event domain.RelayEvent) (string, []domain.TextRange) {
	header := channelMarker + event.ChannelHandle
	text := header + "\n" + divider + "\n" + event.Text + "\n" + divider + "\n" + sourceLabel

	prefix := UTF16Len(header) + 1 + UTF16Len(divider) + 1
	sourceOffset := prefix + UTF16Len(event.Text) + 1 + UTF16Len(divider) + 1

	ranges := make([]domain.TextRange, 0, len(event.Entities)+2)
	ranges = append(ranges, domain.TextRange{
		Kind:   domain.TextBold,
		Offset: UTF16Len(channelMarker),
		Length: UTF16Len(event.ChannelHandle),
	})
	for _, r := range event.Entities {
		shifted := r
		shifted.Offset += prefix
		ranges = append(ranges, shifted)
	}
	ranges = append(ranges, domain.TextRange{
		Kind:   domain.TextLink,
		Offset: sourceOffset,
		Length: UTF16Len(sourceLabel),
		URL:    SourceLink(event.ChannelID, event.MessageID),
	})
	return text, ranges
}
