package main

import "github.com/keyportal/keyportal/cmd"

func main() {
	cmd.Execute()
}
