package main

import "github.com/jmarlow/keepsync/cmd/keepsync/cmd"

func main() {
	cmd.Execute()
}
