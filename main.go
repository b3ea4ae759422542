package main

import "github.com/yukitaka/tccretro/cmd"

func main() {
	cmd.Execute()
}
