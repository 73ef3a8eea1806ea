package main

import "github.com/notewell/miccap/cmd"

func main() {
	cmd.Execute()
}
