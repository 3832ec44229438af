// Package utils предоставляет вспомогательные функции для обработки данных.
package utils

import (
	"strings"
	"unicode/utf8"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// Модели иногда присылают аргументы инструментов в виде:
//
//	```json
//	{"key": "value"}
//	```
//
// Примеры:
//
//	```json {"a": 1} ``` → {"a": 1}
//	``` {"a": 1} ``` → {"a": 1}
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```Json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// TruncateRunes обрезает строку до max символов (рун) и добавляет suffix.
//
// Если строка короче лимита, возвращается без изменений.
// Результат вместе с suffix не превышает max.
func TruncateRunes(s string, max int, suffix string) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - utf8.RuneCountInString(suffix)
	if keep <= 0 {
		return string([]rune(suffix)[:max])
	}
	return string([]rune(s)[:keep]) + suffix
}
