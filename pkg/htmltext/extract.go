// Package htmltext извлекает видимый текст из HTML документа.
//
// Скрипты, стили и прочие невидимые элементы отбрасываются, блочные
// элементы разделяются переводами строк, чтобы сплиттер суммаризатора
// мог резать текст по абзацам.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped элементы, текст которых пользователь не видит.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Object:   true,
}

// paragraphs отделяются пустой строкой.
var paragraphs = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Main: true, atom.Nav: true,
	atom.Aside: true, atom.Blockquote: true, atom.Pre: true, atom.Table: true,
	atom.Ul: true, atom.Ol: true, atom.Dl: true, atom.Form: true, atom.Figure: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Title: true, atom.Hr: true,
}

// lines отделяются одиночным переводом строки.
var lines = map[atom.Atom]bool{
	atom.Br: true, atom.Li: true, atom.Tr: true, atom.Dt: true, atom.Dd: true,
	atom.Figcaption: true, atom.Caption: true, atom.Option: true,
}

// textWriter копит текст и откладывает переводы строк до следующего
// непустого фрагмента, чтобы вложенные блоки не плодили пустые строки.
type textWriter struct {
	b       strings.Builder
	pending int // 0 — нет, 1 — "\n", 2 — "\n\n"
}

func (w *textWriter) brk(level int) {
	if level > w.pending {
		w.pending = level
	}
}

func (w *textWriter) text(s string) {
	if w.pending > 0 {
		if strings.TrimSpace(s) == "" {
			return
		}
		if w.b.Len() > 0 {
			w.b.WriteString(strings.Repeat("\n", w.pending))
		}
		w.pending = 0
	}
	w.b.WriteString(strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s))
}

// Extract возвращает видимый текст документа.
//
// Пробелы внутри строк схлопываются, между абзацами остаётся одна пустая строка.
func Extract(document string) string {
	doc, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return normalize(document)
	}

	w := &textWriter{}
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			w.text(n.Data)
			return
		case html.CommentNode, html.DoctypeNode:
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
		}

		level := 0
		if n.Type == html.ElementNode {
			switch {
			case paragraphs[n.DataAtom]:
				level = 2
			case lines[n.DataAtom]:
				level = 1
			case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
				w.text(" ")
			}
		}

		w.brk(level)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
		w.brk(level)
	}
	traverse(doc)

	return normalize(w.b.String())
}

// normalize схлопывает пробелы в строках и пустые строки между ними.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")

	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
