package cli

import (
	"fmt"
)

// HandleJobCommand handles all job-related commands.
func HandleJobCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("job command requires a subcommand (list, create, get, stop, retry)")
	}

	subcommand := args[0]
	subArgs := args[1:]

	switch subcommand {
	case "list":
		return handleJobList(subArgs)
	case "create":
		return handleJobCreate(subArgs)
	case "get":
		return handleJobGet(subArgs)
	case "stop":
		return handleJobStop(subArgs)
	case "retry":
		return handleJobRetry(subArgs)
	case "--help", "-h":
		printJobUsage()
		return nil
	default:
		return fmt.Errorf("unknown job subcommand: %s", subcommand)
	}
}

type jobView struct {
	ID               string  `json:"id"`
	ModelID          string  `json:"model_id"`
	Status           string  `json:"status"`
	NumRounds        int     `json:"num_rounds"`
	CurrentRound     int     `json:"current_round"`
	MinDevices       int     `json:"min_devices"`
	BaseLearningRate float32 `json:"base_learning_rate"`
}

func handleJobList(args []string) error {
	var jobs []jobView
	if err := NewClient().do("GET", "/api/v1/jobs", nil, &jobs); err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}
	fmt.Printf("%-20s %-12s %-10s %s\n", "ID", "MODEL", "STATUS", "ROUND")
	for _, j := range jobs {
		fmt.Printf("%-20s %-12s %-10s %d/%d\n", j.ID, j.ModelID, j.Status, j.CurrentRound, j.NumRounds)
	}
	return nil
}

func handleJobGet(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("job get requires a job id")
	}
	var job jobView
	if err := NewClient().do("GET", "/api/v1/jobs/"+args[0], nil, &job); err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	fmt.Printf("ID:      %s\n", job.ID)
	fmt.Printf("Model:   %s\n", job.ModelID)
	fmt.Printf("Status:  %s\n", job.Status)
	fmt.Printf("Round:   %d/%d\n", job.CurrentRound, job.NumRounds)
	fmt.Printf("LR:      %g\n", job.BaseLearningRate)
	return nil
}

func handleJobCreate(args []string) error {
	req := map[string]any{
		"id":                 "",
		"model_id":           "",
		"architecture":       "",
		"num_rounds":         10,
		"min_devices":        3,
		"base_learning_rate": 0.01,
	}
	for i, arg := range args {
		switch arg {
		case "--id":
			if i+1 < len(args) {
				req["id"] = args[i+1]
			}
		case "--model":
			if i+1 < len(args) {
				req["model_id"] = args[i+1]
			}
		case "--architecture":
			if i+1 < len(args) {
				req["architecture"] = args[i+1]
			}
		}
	}
	if req["id"] == "" || req["model_id"] == "" {
		return fmt.Errorf("job create requires --id and --model")
	}
	var job jobView
	if err := NewClient().do("POST", "/api/v1/jobs", req, &job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	fmt.Printf("Job %s created and started.\n", job.ID)
	return nil
}

func handleJobStop(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("job stop requires a job id")
	}
	if err := NewClient().do("POST", "/api/v1/jobs/"+args[0]+"/stop", nil, nil); err != nil {
		return fmt.Errorf("stop job: %w", err)
	}
	fmt.Printf("Job %s stopped.\n", args[0])
	return nil
}

func handleJobRetry(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("job retry requires a job id")
	}
	if err := NewClient().do("POST", "/api/v1/jobs/"+args[0]+"/retry", nil, nil); err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	fmt.Printf("Job %s resumed.\n", args[0])
	return nil
}

func printJobUsage() {
	fmt.Println("Job command - Manage federated training jobs")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  orchestractl job <subcommand> [arguments]")
	fmt.Println()
	fmt.Println("Available Subcommands:")
	fmt.Println("  list                                         List all jobs")
	fmt.Println("  get <id>                                     Show a single job")
	fmt.Println("  create --id <id> --model <model-id> [--architecture <key>]")
	fmt.Println("  stop <id>                                    Stop a running job")
	fmt.Println("  retry <id>                                   Resume a failed job")
}
