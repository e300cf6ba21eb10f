// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode/utf8"
)

const (
	minNameLength     = 3
	maxNameLength     = 80
	minPasswordLength = 6
)

// IsValidName проверяет длину имени пользователя.
func IsValidName(name string) bool {
	length := utf8.RuneCountInString(strings.TrimSpace(name))
	return length >= minNameLength && length <= maxNameLength
}

// IsValidEmail проверяет, что строка похожа на адрес электронной почты.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t") {
		return false
	}

	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}

	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}

	return true
}

// IsValidPassword проверяет минимальную длину пароля.
func IsValidPassword(password string) bool {
	return utf8.RuneCountInString(password) >= minPasswordLength
}
