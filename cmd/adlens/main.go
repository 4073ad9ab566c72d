package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bilalbayram/adlens/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !errorAlreadyPrinted(err) {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		os.Exit(cli.ExitCode(err))
	}
}

type alreadyPrintedError interface {
	AlreadyPrinted() bool
}

func errorAlreadyPrinted(err error) bool {
	var marker alreadyPrintedError
	return errors.As(err, &marker) && marker.AlreadyPrinted()
}
