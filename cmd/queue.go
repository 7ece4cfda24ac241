// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This is the Go analogue of crates/ize/src/bin/ize_dump_opcode_queue.rs:
// a standalone tool that inspects a running mount's pending-opcode queue
// without disturbing it, for operational visibility.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect a running mount's pending-opcode queue",
}

var queueDumpAddr string

var queueDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the opcodes currently sitting in a mount's queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get("http://" + queueDumpAddr + "/queue")
		if err != nil {
			return fmt.Errorf("querying queue debug endpoint at %s: %w", queueDumpAddr, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading queue debug response: %w", err)
		}

		var pending []map[string]any
		if err := json.Unmarshal(body, &pending); err != nil {
			return fmt.Errorf("decoding queue debug response: %w", err)
		}
		for _, oc := range pending {
			fmt.Printf("#%v %v %v\n", oc["seq"], oc["variant"], oc["path"])
		}
		return nil
	},
}

func init() {
	queueDumpCmd.Flags().StringVar(&queueDumpAddr, "addr", "localhost:0", "Address the target mount's --queue-dump-addr is listening on.")
	queueCmd.AddCommand(queueDumpCmd)
}
