// Command dbal builds selections over table definitions and runs them in
// memory or against SQLite, MySQL and PostgreSQL.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dbal/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
