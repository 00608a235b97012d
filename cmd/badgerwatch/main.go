package main

import "github.com/example/badgerwatch/cmd"

func main() {
	cmd.Execute()
}
