package main

import "github.com/artverse/nova/cmd"

func main() {
	cmd.Execute()
}
