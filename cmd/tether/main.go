package main

import (
	"github.com/edgetether/tether/internal/cli"
)

func main() {
	cli.Execute()
}
