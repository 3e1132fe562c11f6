package main

import (
	"os"

	"github.com/repo-edu/repo-edu-sub001/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
