package main

import "github.com/Alturino/shopbot/cmd"

func main() {
	cmd.Start()
}
