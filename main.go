package main

import (
	"github.com/handoverhq/handover/cmd"
	"github.com/handoverhq/handover/internal/herrors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		herrors.FatalError(err, cmd.JSONOutput())
	}
}
