package monitor

import "regexp"

// Хэштег спонсора или токен маркировки erid после границы слова.
var adRegex = regexp.MustCompile(`(?i)#реклама|(?:^|[\s/\\?&])erid[\s:=]+[a-z0-9]{8,}`)

// IsAd сообщает, похож ли текст на рекламный пост.
func IsAd(text string) bool {
	return adRegex.MatchString(text)
}
