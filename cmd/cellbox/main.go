package main

import "github.com/cellbox/cellbox/cmd/cellbox/cmd"

func main() {
	cmd.Execute()
}
