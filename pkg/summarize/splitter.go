// Package summarize реализует map-reduce суммаризацию длинного текста
// относительно цели исследования.
package summarize

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators от крупных границ к мелким: абзац, строка, слово, символ.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter режет текст на куски не длиннее ChunkSize символов с перекрытием
// ChunkOverlap символов между соседними кусками.
//
// Разделитель остаётся в начале следующего фрагмента. Разрез посреди слова
// происходит только если фрагмент без пробелов сам длиннее ChunkSize.
// Результат детерминирован и сохраняет порядок текста.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter создаёт сплиттер с разделителями по умолчанию.
func NewSplitter(chunkSize, chunkOverlap int) Splitter {
	return Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// Split возвращает куски текста в исходном порядке.
func (s Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s Splitter) split(text string, seps []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range seps {
		if candidate == "" {
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var chunks, small []string
	for _, piece := range splitKeepSeparator(text, sep) {
		if runeLen(piece) < s.ChunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, s.merge(small)...)
			small = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(small) > 0 {
		chunks = append(chunks, s.merge(small)...)
	}
	return chunks
}

// merge склеивает мелкие фрагменты в куски до ChunkSize, перенося хвост
// предыдущего куска (до ChunkOverlap символов) в начало следующего.
func (s Splitter) merge(pieces []string) []string {
	var chunks, current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.ChunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(current) > 0 && (total > s.ChunkOverlap || total+n > s.ChunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepSeparator режет по sep, оставляя sep в начале каждого
// следующего фрагмента. Пустой sep режет по символам.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, runeLen(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
