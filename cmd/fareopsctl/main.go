package main

import (
	"github.com/taxifare/fareops/cmd/fareopsctl/cmd"
	"github.com/taxifare/fareops/internal/common"
)

func main() {
	common.ConfigureCommandLineLogging()
	cmd.Execute()
}
