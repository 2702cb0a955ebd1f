package main

import (
	"LiveRadio/cmd"
)

func main() {
	cmd.Execute()
}
