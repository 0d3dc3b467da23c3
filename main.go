package main

import "github.com/apm-run/apm/cmd"

func main() {
	cmd.Execute()
}
