package mtproto

import (
	"net/url"

	"github.com/gotd/td/tg"

	"tgfeed/internal/domain"
)

// ConvertEntities переводит сущности MTProto в диапазоны форматирования.
// Неизвестные типы и ссылки с некорректным URL пропускаются.
func ConvertEntities(entities []tg.MessageEntityClass) []domain.TextRange {
	if len(entities) == 0 {
		return nil
	}
	out := make([]domain.TextRange, 0, len(entities))
	for _, e := range entities {
		r := domain.TextRange{Offset: e.GetOffset(), Length: e.GetLength()}
		switch v := e.(type) {
		case *tg.MessageEntityBold:
			r.Kind = domain.TextBold
		case *tg.MessageEntityItalic:
			r.Kind = domain.TextItalic
		case *tg.MessageEntityCode:
			r.Kind = domain.TextCode
		case *tg.MessageEntityPre:
			r.Kind = domain.TextPre
			r.Language = v.Language
		case *tg.MessageEntityUnderline:
			r.Kind = domain.TextUnderline
		case *tg.MessageEntityStrike:
			r.Kind = domain.TextStrikethrough
		case *tg.MessageEntitySpoiler:
			r.Kind = domain.TextSpoiler
		case *tg.MessageEntityMention:
			r.Kind = domain.TextMention
		case *tg.MessageEntityHashtag:
			r.Kind = domain.TextHashtag
		case *tg.MessageEntityURL:
			r.Kind = domain.TextURL
		case *tg.MessageEntityTextURL:
			if !validLink(v.URL) {
				continue
			}
			r.Kind = domain.TextLink
			r.URL = v.URL
		default:
			continue
		}
		if r.Length <= 0 || r.Offset < 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

func validLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https":
		return u.Host != ""
	case "tg", "mailto":
		return true
	default:
		return false
	}
}
