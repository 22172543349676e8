package tgui

import (
	"fmt"
	"html"
)

// H is Telegram-HTML-safe text (ParseMode="HTML"). Treat values of this
// type as already escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes user/catalog text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

// B renders s in bold, escaping it first.
func B(s string) H { return H("<b>" + html.EscapeString(s) + "</b>") }

// Link renders an HTML anchor. html.EscapeString also escapes quotes, so
// the href attribute is safe.
func Link(text, url string) H {
	return H(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text)))
}
