// The main package for the llmstxt executable.
package main

import (
	"github.com/sitedesc/llmstxt/cmd"
)

func main() {
	cmd.Execute()
}
