package main

import (
	"github.com/plotwatch/plotwatch/cmd"
)

func main() {
	cmd.Execute()
}
