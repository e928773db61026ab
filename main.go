package main

import (
	"github.com/dbgate/dbdeploy/cmd"
	"github.com/dbgate/dbdeploy/cmd/util"
)

func main() {
	util.LoadDotEnv()
	cmd.Execute()
}
