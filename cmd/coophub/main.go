//go:build !testcoverage

package main

import (
	"fmt"
	"os"

	coophub "github.com/smartcoophub/client-go"
)

func main() {
	if err := run(os.Args[1:], DefaultConfig()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", coophub.ErrorMessage(err))
		os.Exit(1)
	}
}
