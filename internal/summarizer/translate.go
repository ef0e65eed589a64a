package summarizer

import "fmt"

// TranslateText does not translate. It returns text wrapped in a notice naming
// the requested language, so callers can show something in its place.
func TranslateText(text, targetLanguage string) string {
	return fmt.Sprintf("[Translation to %s is temporarily unavailable. Original text:] %s", targetLanguage, text)
}
