package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// VerifySignature пересчитывает HMAC-SHA256 от "intentRef|paymentRef" на
// серверном секрете и сравнивает с присланной подписью за константное
// время. Любое несовпадение — ошибка аутентификации, не предупреждение.
func VerifySignature(secret, intentRef, paymentRef, signature string) error {
	if intentRef == "" || paymentRef == "" || signature == "" {
		return domain.ErrSignatureMismatch
	}

	expected := ComputeSignature(secret, intentRef, paymentRef)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrSignatureMismatch
	}
	return nil
}

// ComputeSignature возвращает hex-представление HMAC-SHA256 от
// "intentRef|paymentRef". Выделено отдельно для тестов и эмуляции колбэков.
func ComputeSignature(secret, intentRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}
