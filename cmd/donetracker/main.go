// Command donetracker はTodo・プロジェクト管理APIサーバーを起動する。
//
// 使い方:
//
//	donetracker [serve|migrate|healthcheck|help]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/donetracker/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
