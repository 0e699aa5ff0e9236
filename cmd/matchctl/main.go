// Command matchctl scores talents against opportunities and checks team
// permissions offline, without a running server.
package main

import (
	"os"

	"github.com/okian/maison/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
