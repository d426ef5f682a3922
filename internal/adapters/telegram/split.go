package telegram

import (
	"unicode/utf8"

	"tgfeed/internal/domain"
)

// MessageLimit — максимальная длина сообщения Bot API в UTF-16 code units.
const MessageLimit = 4096

// UTF16Len возвращает длину строки в UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

// SplitUTF16 режет текст на части не длиннее maxLen UTF-16 code units.
// Части режутся по границам символов исходной строки, поэтому их склейка всегда
// совпадает с текстом, включая некорректный UTF-8. Граница переносится назад
// к последнему переводу строки во второй половине окна, если он есть.
// Символ шире maxLen (суррогатная пара при maxLen == 1) уходит в отдельную часть целиком.
func SplitUTF16(text string, maxLen int) []string {
	if maxLen <= 0 || UTF16Len(text) <= maxLen {
		return []string{text}
	}

	// bytesAt[k] и unitsAt[k] — смещения начала k-го символа, последний элемент — конец текста.
	var bytesAt, unitsAt []int
	units := 0
	for b := 0; b < len(text); {
		r, size := utf8.DecodeRuneInString(text[b:])
		bytesAt = append(bytesAt, b)
		unitsAt = append(unitsAt, units)
		units += runeUnits(r)
		b += size
	}
	bytesAt = append(bytesAt, len(text))
	unitsAt = append(unitsAt, units)
	last := len(bytesAt) - 1

	var parts []string
	for start := 0; start < last; {
		end := unitsAt[start] + maxLen
		if unitsAt[last] <= end {
			parts = append(parts, text[bytesAt[start]:])
			break
		}

		// последняя граница символа, не выходящая за окно
		hard := start
		for hard+1 <= last && unitsAt[hard+1] <= end {
			hard++
		}

		cut := -1
		mid := unitsAt[start] + maxLen/2
		for k := hard - 1; k >= start && unitsAt[k] >= mid; k-- {
			if text[bytesAt[k]] == '\n' {
				cut = k + 1
				break
			}
		}
		if cut == -1 {
			cut = hard
			if cut == start {
				cut = start + 1
			}
		}

		parts = append(parts, text[bytesAt[start]:bytesAt[cut]])
		start = cut
	}
	return parts
}

func runeUnits(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

// SplitRanges раскладывает диапазоны форматирования по частям, полученным из SplitUTF16.
// Диапазоны, пересекающие границу части, обрезаются по ней.
func SplitRanges(ranges []domain.TextRange, chunks []string) [][]domain.TextRange {
	out := make([][]domain.TextRange, len(chunks))
	offset := 0
	for i, chunk := range chunks {
		size := UTF16Len(chunk)
		lo, hi := offset, offset+size
		for _, r := range ranges {
			start, end := r.Offset, r.Offset+r.Length
			if end <= lo || start >= hi {
				continue
			}
			if start < lo {
				start = lo
			}
			if end > hi {
				end = hi
			}
			clipped := r
			clipped.Offset = start - lo
			clipped.Length = end - start
			out[i] = append(out[i], clipped)
		}
		offset = hi
	}
	return out
}
