// Package credentials генерирует пары логин/пароль для новых участников.
//
// Логин строится на основе uuid, пароль — случайная строка из фиксированного
// алфавита. Пара показывается пользователю один раз, в хранилище попадает
// только хэш пароля.
package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	passwordLength = 12
	// Без визуально похожих символов (0/O, 1/l/I).
	passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewPair возвращает сгенерированные логин и пароль участника.
func NewPair() (username, password string, err error) {
	const op = "credentials.NewPair"

	username = "m" + strings.Split(uuid.NewString(), "-")[0]

	var sb strings.Builder
	for range passwordLength {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		sb.WriteByte(passwordAlphabet[idx.Int64()])
	}
	return username, sb.String(), nil
}
