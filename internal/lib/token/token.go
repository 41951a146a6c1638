// Package token генерирует непредсказуемые строки для одноразовых
// токенов продления. Используется crypto/rand, длина и алфавит
// совместимы со ссылками из писем: 32 символа [A-Za-z0-9].
package token

import (
	"crypto/rand"
	"fmt"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Length длина токена продления в символах.
const Length = 32

// New возвращает новый случайный токен продления.
func New() (string, error) {
	const op = "token.New"

	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
