package main

import (
	"fmt"
	"os"

	"github.com/Usaidkhxn/LaunchLens/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
