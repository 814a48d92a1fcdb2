package main

import "github.com/moodlens/moodlens/cmd"

func main() {
	cmd.Execute()
}
