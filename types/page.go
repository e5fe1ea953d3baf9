package types

// Byte caps for untrusted page context fields. They bound token cost and
// limit the prompt-injection surface of page-derived text.
const (
	MaxURLLength        = 2000
	MaxTitleLength      = 500
	MaxElementsLength   = 20000
	MaxStatusTextLength = 2000
)

// PageContext is the caller-supplied snapshot of the live page. All of it is
// untrusted input: the orchestrator only ever renders it as data, wrapped in
// explicit delimiters, never as instructions.
type PageContext struct {
	URL                 string `json:"url"`
	Title               string `json:"title,omitempty"`
	InteractiveElements string `json:"interactive_elements,omitempty"`
	StatusText          string `json:"status_text,omitempty"`
	ElementCount        int    `json:"element_count,omitempty"`
}

// Clamp returns a copy with every field truncated to its cap and the element
// count floored at zero. Applied at the boundary before any use.
func (p PageContext) Clamp() PageContext {
	p.URL = TruncateRunes(p.URL, MaxURLLength)
	p.Title = TruncateRunes(p.Title, MaxTitleLength)
	p.InteractiveElements = TruncateRunes(p.InteractiveElements, MaxElementsLength)
	p.StatusText = TruncateRunes(p.StatusText, MaxStatusTextLength)
	if p.ElementCount < 0 {
		p.ElementCount = 0
	}
	return p
}

// TruncateRunes shortens s to at most n runes without splitting a rune.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for idx := range s {
		if i == n {
			return s[:idx]
		}
		i++
	}
	return s
}
