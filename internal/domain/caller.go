package domain

// Caller — явный контекст вызывающей стороны. Передаётся первым
// бизнес-аргументом в каждую точку входа движка вместо неявного
// "текущего пользователя": аутентификация и авторизация выполняются
// снаружи, движок лишь доверяет принятому решению.
type Caller struct {
	UserID string
	// Operator разрешает административные операции: смену статусов,
	// решения по возвратам/обменам, просмотр чужих заказов.
	Operator bool
}

// Owns проверяет, принадлежит ли ресурс с ownerID вызывающей стороне.
// Операторам принадлежность не требуется.
func (c Caller) Owns(ownerID string) bool {
	return c.Operator || (c.UserID != "" && c.UserID == ownerID)
}
