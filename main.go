package main

import (
	"os"

	"github.com/mensylisir/xmremote/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
