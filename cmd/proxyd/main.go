package main

import "github.com/mini0405/shardproxy/cmd/proxyd/cmd"

func main() {
	cmd.Execute()
}
