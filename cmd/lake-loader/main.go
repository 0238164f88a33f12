// Package main is the entry point for the lake-loader binary.
package main

import (
	"os"

	_ "github.com/mattn/go-sqlite3"

	cli "lake-loader/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
