package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var separatorPattern = regexp.MustCompile(`[-_]+`)
var spacePattern = regexp.MustCompile(`\s+`)

// Humanize converts an identifier like "summer-sale_2024" into a
// display name like "Summer Sale 2024".
func Humanize(id string) string {
	if id == "" {
		return ""
	}

	name := separatorPattern.ReplaceAllString(id, " ")
	name = spacePattern.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	words := strings.Split(name, " ")
	for i, word := range words {
		words[i] = capitalize(word)
	}

	return strings.Join(words, " ")
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	runes := []rune(word)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
