package main

import "github.com/grosfs/go-grosfs/cmd"

func main() {
	cmd.Execute()
}
