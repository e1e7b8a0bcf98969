package main

import (
	"bankstatements/cmd/statements/commands"
	"bankstatements/internal/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
