package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "configure":
		err = runConfigure()
	case "doctor":
		err = runDoctor()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("gopgadmin: PostgreSQL table administration over MCP")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gopgadmin serve       Start the MCP server")
	fmt.Println("  gopgadmin configure   Run interactive configuration wizard")
	fmt.Println("  gopgadmin doctor      Validate the configuration and print agent snippets")
	fmt.Println("  gopgadmin --help      Show this help message")
}
