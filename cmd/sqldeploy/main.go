// Command sqldeploy is the thin CLI front-end that binds flags to
// session/target-group options and drives the deployment engine (spec.md
// §1 lists the CLI as an external collaborator of the engine itself).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
