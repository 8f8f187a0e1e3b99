package main

import "github.com/connesc/pbosign/internal/cmd"

func main() {
	cmd.Execute()
}
