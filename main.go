package main

import "github.com/dyike/TickerGo/internal/cli"

func main() {
	cli.Run()
}
