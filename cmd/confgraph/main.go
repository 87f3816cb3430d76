// confgraph — консольный доступ к графу конфигурации: проверка схемы,
// миграция файлов, навигация по узлам и сравнение двух конфигураций.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
