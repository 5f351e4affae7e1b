package main

import (
	"fmt"
	"log"
	"os"

	"github.com/edgeorchestra/orchestra/pkg/cli"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "device":
		if err := cli.HandleDeviceCommand(args); err != nil {
			log.Fatalf("device command failed: %v", err)
		}
	case "job":
		if err := cli.HandleJobCommand(args); err != nil {
			log.Fatalf("job command failed: %v", err)
		}
	case "version":
		fmt.Println("orchestractl v0.1.0")
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("orchestractl - operator CLI for the EdgeOrchestra coordinator")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  orchestractl <command> [arguments]")
	fmt.Println()
	fmt.Println("Available Commands:")
	fmt.Println("  device       Inspect and manage registered devices")
	fmt.Println("  job          Manage federated training jobs")
	fmt.Println("  version      Show version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Configuration is read from EDGEORCHESTRA_API_URL and EDGEORCHESTRA_API_KEY.")
	fmt.Println()
	fmt.Println("For more help on a specific command:")
	fmt.Println("  orchestractl <command> --help")
}
