// Command xanote manages the note service database, settings and backups.
package main

import (
	_ "time/tzdata"

	"github.com/mesh-intelligence/xanote/internal/cli"
)

func main() {
	cli.Execute()
}
