package cli

import (
	"fmt"
)

// HandleDeviceCommand handles all device-related commands.
func HandleDeviceCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("device command requires a subcommand (list, get, delete, etc.)")
	}

	subcommand := args[0]
	subArgs := args[1:]

	switch subcommand {
	case "list":
		return handleDeviceList(subArgs)
	case "get":
		return handleDeviceGet(subArgs)
	case "delete":
		return handleDeviceDelete(subArgs)
	case "--help", "-h":
		printDeviceUsage()
		return nil
	default:
		return fmt.Errorf("unknown device subcommand: %s", subcommand)
	}
}

type deviceView struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	Status       string `json:"status"`
	LastSeenAt   string `json:"last_seen_at"`
	RegisteredAt string `json:"registered_at"`
}

func handleDeviceList(args []string) error {
	var devices []deviceView
	if err := NewClient().do("GET", "/api/v1/devices", nil, &devices); err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Println("No devices registered.")
		return nil
	}
	fmt.Printf("%-20s %-20s %-10s %s\n", "ID", "NAME", "STATUS", "LAST SEEN")
	for _, d := range devices {
		fmt.Printf("%-20s %-20s %-10s %s\n", d.ID, d.DisplayName, d.Status, d.LastSeenAt)
	}
	return nil
}

func handleDeviceGet(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("device get requires a device id")
	}
	var device deviceView
	if err := NewClient().do("GET", "/api/v1/devices/"+args[0], nil, &device); err != nil {
		return fmt.Errorf("get device: %w", err)
	}
	fmt.Printf("ID:           %s\n", device.ID)
	fmt.Printf("Name:         %s\n", device.DisplayName)
	fmt.Printf("Status:       %s\n", device.Status)
	fmt.Printf("Registered:   %s\n", device.RegisteredAt)
	fmt.Printf("Last seen:    %s\n", device.LastSeenAt)
	return nil
}

func handleDeviceDelete(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("device delete requires a device id")
	}
	if err := NewClient().do("DELETE", "/api/v1/devices/"+args[0], nil, nil); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	fmt.Printf("Device %s deleted.\n", args[0])
	return nil
}

func printDeviceUsage() {
	fmt.Println("Device command - Inspect and manage registered devices")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  orchestractl device <subcommand> [arguments]")
	fmt.Println()
	fmt.Println("Available Subcommands:")
	fmt.Println("  list          List all registered devices")
	fmt.Println("  get <id>      Show a single device")
	fmt.Println("  delete <id>   Remove a device")
}
