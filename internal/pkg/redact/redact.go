// redact маскирует чувствительные данные перед записью в лог,
// сохраняя полезный для отладки контекст.
package redact

import "strings"

// Email маскирует e-mail: первые две руны локальной части + "***", домен как есть.
// Строка без ровно одного '@' заменяется на "***" целиком.
//
//	"foobar@example.com" -> "fo***@example.com"
//	"ab@ex.com"          -> "***@ex.com"
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	local, domain := s[:i], s[i+1:]

	lr := []rune(local)
	if len(lr) > 2 {
		local = string(lr[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Username оставляет первую руну имени.
func Username(s string) string {
	r := []rune(s)
	if len(r) <= 1 {
		return "***"
	}

	return string(r[:1]) + "***"
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
