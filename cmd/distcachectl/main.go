// Command distcachectl is a small CLI client for a running distcache
// node's public API: get, put, and delete.
//
// Generalized from the teacher's cmd/cachectl (flag-based get/set/del)
// onto spf13/cobra, matching distcache-node's CLI frontend.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	var server string
	var ttl time.Duration

	root := &cobra.Command{
		Use:   "distcachectl",
		Short: "Command-line client for a distcache node's public API",
	}
	root.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "node's public API base URL")

	getCmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Fetch a key's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(server, args[0])
		},
	}

	putCmd := &cobra.Command{
		Use:   "put KEY VALUE",
		Short: "Store a JSON value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(server, args[0], args[1], ttl)
		},
	}
	putCmd.Flags().DurationVar(&ttl, "ttl", 0, "time-to-live for the entry (0 = no expiry)")

	deleteCmd := &cobra.Command{
		Use:   "delete KEY",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(server, args[0])
		},
	}

	root.AddCommand(getCmd, putCmd, deleteCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runGet(server, key string) error {
	resp, err := http.Get(server + "/cache/" + key)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		fmt.Fprintln(os.Stderr, "not found")
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(os.Stderr, resp.Body)
		os.Exit(1)
	}
	io.Copy(os.Stdout, resp.Body)
	fmt.Println()
	return nil
}

// runPut treats VALUE as a JSON literal if it parses as one (a number,
// bool, quoted string, object, or array); otherwise it is sent as a plain
// JSON string, so `distcachectl put k hello` and `distcachectl put k
// '"hello"'` behave the same.
func runPut(server, key, value string, ttl time.Duration) error {
	var raw json.RawMessage
	if json.Valid([]byte(value)) {
		raw = json.RawMessage(value)
	} else {
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		raw = encoded
	}

	body, err := json.Marshal(struct {
		Value     json.RawMessage `json:"value"`
		TTLMillis int64           `json:"ttlMillis"`
	}{Value: raw, TTLMillis: ttl.Milliseconds()})
	if err != nil {
		return err
	}

	resp, err := http.Post(server+"/cache/"+key, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		io.Copy(os.Stderr, resp.Body)
		os.Exit(1)
	}
	fmt.Println("OK")
	return nil
}

func runDelete(server, key string) error {
	req, err := http.NewRequest(http.MethodDelete, server+"/cache/"+key, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		io.Copy(os.Stderr, resp.Body)
		os.Exit(1)
	}
	fmt.Println("OK")
	return nil
}
