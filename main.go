package main

import "github.com/dayuer/kaapav-go/cmd"

func main() {
	cmd.Execute()
}
