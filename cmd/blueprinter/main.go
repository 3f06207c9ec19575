// Command blueprinter converts YAML blueprints to canonical JSON and applies
// them to an organization through the blueprint API.
package main

import (
	"os"

	"github.com/cameronsjo/blueprinter/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
