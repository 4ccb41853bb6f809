package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var (
	runLanguage string
	runHost     string
	runMerge    bool
)

var runCmd = &cobra.Command{
	Use:   "run [code]",
	Short: "Run code against a running run-api server (client utility)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		code := args[0]

		payload := map[string]any{
			"code":         code,
			"merge_output": runMerge,
		}
		body, _ := json.Marshal(payload)

		url := fmt.Sprintf("%s/run/%s", runHost, runLanguage)
		resp, err := http.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Failed to connect: %v\nIs the server running?\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			fmt.Printf("Run failed: %s\n", resp.Status)
			io.Copy(os.Stderr, resp.Body)
			os.Exit(1)
		}

		var result struct {
			Stdout   string  `json:"stdout"`
			Stderr   string  `json:"stderr"`
			ExitCode int     `json:"exit_code"`
			ExecTime float64 `json:"exec_time"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			fmt.Printf("Bad response: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(result.Stdout)
		if result.Stderr != "" {
			fmt.Fprint(os.Stderr, result.Stderr)
		}
		fmt.Printf("\n[exit_code=%d exec_time=%.3fs]\n", result.ExitCode, result.ExecTime)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runLanguage, "language", "l", "python", "Language tag selecting the image")
	runCmd.Flags().StringVar(&runHost, "host", "http://localhost:8080", "run-api server base URL")
	runCmd.Flags().BoolVar(&runMerge, "merge-output", false, "Merge stderr into stdout")
	RootCmd.AddCommand(runCmd)
}
