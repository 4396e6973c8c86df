package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/blendopt/internal/plan"
	"github.com/cwbudde/blendopt/internal/server"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query server runs",
	Long: `Queries a running server for job status information.
If no run-id is provided, lists all jobs.
If run-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(fmt.Sprintf("%s/api/v1/runs", serverURL))
	}
	return getJobStatus(fmt.Sprintf("%s/api/v1/runs/%s", serverURL, args[0]), args[0])
}

func fetchJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(url string) error {
	var jobs []server.Job
	if _, err := fetchJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job.ID)
		fmt.Printf("  State: %s\n", job.State)
		fmt.Printf("  Mode: %s\n", job.Mode)
		fmt.Printf("  Tanks: %d\n", job.Tanks)
		if job.State == server.StateCompleted {
			fmt.Printf("  Cost: %s (%s)\n", plan.FormatCost(job.Cost), job.Optimizer)
		}
		fmt.Println()
	}

	return nil
}

func getJobStatus(url, jobID string) error {
	var status struct {
		server.Job
		Elapsed float64 `json:"elapsed"`
	}
	code, err := fetchJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Job: %s\n", status.ID)
	fmt.Printf("State: %s\n", status.State)
	fmt.Printf("Mode: %s\n", status.Mode)
	fmt.Printf("Tanks: %d\n", status.Tanks)
	fmt.Printf("Elapsed: %s\n", time.Duration(status.Elapsed*float64(time.Second)).Round(time.Millisecond))

	if status.State == server.StateCompleted {
		fmt.Println()
		fmt.Println("Result:")
		fmt.Printf("  Cost: %s\n", plan.FormatCost(status.Cost))
		fmt.Printf("  Optimizer: %s\n", status.Optimizer)
		fmt.Printf("  Feasible: %v\n", status.Feasible)
		fmt.Printf("  Persisted: %v\n", status.Persisted)
		if status.Report != nil {
			fmt.Printf("  Allocation: %v\n", []float64(status.Report.Allocation))
		}
	}

	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}

	return nil
}
