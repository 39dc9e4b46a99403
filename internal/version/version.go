// Package version хранит сборочную информацию сервиса выполнения заказов,
// подставляемую через -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// String — однострочное представление для логов старта и /healthz.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
