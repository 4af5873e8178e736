package main

import "github.com/postboard/apiserver/cmd"

func main() {
	cmd.Execute()
}
