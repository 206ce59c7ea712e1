package main

import "github.com/KaramelBytes/hydrochem-cli/cmd"

func main() {
	cmd.Execute()
}
