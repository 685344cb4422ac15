// Command mgx3d drives the reference-counted object graph.
package main

import (
	"os"

	"github.com/mgx3d/tkutil/internal/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
