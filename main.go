package main

import "github.com/code-sleuth/sage-go/cmd"

func main() {
	cmd.Execute()
}
