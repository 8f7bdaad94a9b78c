package app

import (
	"fmt"
	"io"
	"strings"
)

// Command はdonetrackerのサブコマンド名。
type Command string

const (
	CommandServe       Command = "serve"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
	CommandHelp        Command = "help"
)

// commands は表示順に並べたサブコマンド一覧。
var commands = []struct {
	name    Command
	summary string
}{
	{CommandServe, "start the HTTP API (default)"},
	{CommandMigrate, "apply database migrations and exit"},
	{CommandHealthcheck, "probe GET /health on SERVER_PORT; exit status reflects the result"},
	{CommandHelp, "print this message"},
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数が無ければserve。未知の名前はタイプミスでサーバーが起動しないようエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	name := Command(args[0])
	for _, c := range commands {
		if c.name == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown command %q (run %q for usage)", args[0], "donetracker help")
}

// writeUsage はサブコマンドの一覧を書き出す。
func writeUsage(w io.Writer) {
	var b strings.Builder
	b.WriteString("usage: donetracker [command]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.name, c.summary)
	}
	io.WriteString(w, b.String())
}
