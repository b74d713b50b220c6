package main

import (
	"fmt"
	"os"

	"github.com/findrapp/findr/cmd"
	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/logger"
)

func main() {
	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings)

	err := rootCmd.Execute()
	if flushErr := logger.Global().Flush(); flushErr != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", flushErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
