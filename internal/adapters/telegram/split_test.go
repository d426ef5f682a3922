package telegram

import (
	"strings"
	"testing"
	"unicode/utf16"
	"unicode/utf8"
)

func TestSplitUTF16PrefersNewline(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("a", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("b", 2000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("c", 500))
	text := builder.String()

	parts := SplitUTF16(text, MessageLimit)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	if parts[0] != strings.Repeat("a", 3000)+"\n\n" {
		t.Fatalf("первая часть должна заканчиваться переводом строки")
	}
	if strings.Join(parts, "") != text {
		t.Fatalf("склейка частей не совпадает с исходным текстом")
	}
}

func TestSplitUTF16ExactLimit(t *testing.T) {
	text := strings.Repeat("x", MessageLimit)
	parts := SplitUTF16(text, MessageLimit)
	if len(parts) != 1 || parts[0] != text {
		t.Fatalf("текст ровно по лимиту должен остаться одной частью, получили %d", len(parts))
	}
}

func TestSplitUTF16HardCut(t *testing.T) {
	text := strings.Repeat("y", MessageLimit+100)
	parts := SplitUTF16(text, MessageLimit)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	if UTF16Len(parts[0]) != MessageLimit || UTF16Len(parts[1]) != 100 {
		t.Fatalf("неожиданные длины частей: %d и %d", UTF16Len(parts[0]), UTF16Len(parts[1]))
	}
}

func TestSplitUTF16IgnoresEarlyNewline(t *testing.T) {
	text := "ab\n" + strings.Repeat("z", 20)
	parts := SplitUTF16(text, 10)
	if parts[0] != "ab\n"+strings.Repeat("z", 7) {
		t.Fatalf("перевод строки до середины окна не должен использоваться: %q", parts[0])
	}
}

func TestSplitUTF16Invariants(t *testing.T) {
	texts := []string{
		"",
		"короткий текст",
		strings.Repeat("😀", 50),
		strings.Repeat("строка с эмодзи 🚀\n", 40),
		strings.Repeat("a😀b\n", 33) + strings.Repeat("ё", 70),
	}
	for _, text := range texts {
		for _, maxLen := range []int{3, 7, 16, 64, 100} {
			parts := SplitUTF16(text, maxLen)
			if got := strings.Join(parts, ""); got != text {
				t.Fatalf("maxLen=%d: склейка не совпадает с исходником", maxLen)
			}
			for i, part := range parts {
				if n := len(utf16.Encode([]rune(part))); n > maxLen {
					t.Fatalf("maxLen=%d: часть %d длиной %d превышает лимит", maxLen, i, n)
				}
			}
		}
	}
}

func TestSplitUTF16KeepsSurrogatePairs(t *testing.T) {
	text := "a" + strings.Repeat("😀", 5)
	parts := SplitUTF16(text, 4)
	for i, part := range parts {
		if strings.ContainsRune(part, utf8.RuneError) {
			t.Fatalf("часть %d содержит битый символ: %q", i, part)
		}
	}
	if strings.Join(parts, "") != text {
		t.Fatalf("склейка не совпадает с исходником")
	}
}

func TestSplitUTF16InvalidUTF8RoundTrips(t *testing.T) {
	text := "aaaaaaaaaa\xffbbbbbbbbbb"
	for _, maxLen := range []int{1, 3, 8, 11} {
		parts := SplitUTF16(text, maxLen)
		if strings.Join(parts, "") != text {
			t.Fatalf("maxLen=%d: склейка не совпадает с исходником: %q", maxLen, parts)
		}
		for i, part := range parts {
			if n := UTF16Len(part); n > maxLen {
				t.Fatalf("maxLen=%d: часть %d длиной %d превышает лимит", maxLen, i, n)
			}
		}
	}
}

func TestSplitUTF16WideRuneBelowLimit(t *testing.T) {
	text := "😀a😀"
	parts := SplitUTF16(text, 1)
	if len(parts) != 3 || parts[0] != "😀" || parts[1] != "a" || parts[2] != "😀" {
		t.Fatalf("суррогатная пара должна уходить целиком: %q", parts)
	}
}
