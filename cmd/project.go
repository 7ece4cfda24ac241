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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patchworkfs/patchworkfs/internal/project"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Inspect and manage tracked projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every tracked project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		centralDir, err := projectCentralDir()
		if err != nil {
			return err
		}
		manager, err := project.NewManager(centralDir)
		if err != nil {
			return err
		}
		manifests, err := manager.List()
		if err != nil {
			return err
		}
		for _, m := range manifests {
			fmt.Printf("%s\t%s\t%s\n", m.UUID, m.SourceDir, m.ActiveChannel)
		}
		return nil
	},
}

var projectChannelCmd = &cobra.Command{
	Use:   "channel <project-uuid> <channel-name>",
	Short: "Switch a project's active channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		centralDir, err := projectCentralDir()
		if err != nil {
			return err
		}
		manager, err := project.NewManager(centralDir)
		if err != nil {
			return err
		}
		proj, err := manager.FindByUUID(args[0])
		if err != nil {
			return err
		}
		return proj.SwitchChannel(args[1])
	},
}

func init() {
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectChannelCmd)
}
