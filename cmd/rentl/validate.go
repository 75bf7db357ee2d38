package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trevorWieland/rentl-sub001/internal/config"
	"github.com/trevorWieland/rentl-sub001/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the project file without running anything",
	Long: `Parse the project file and validate its pipeline definition:
phase ordering, dependency closure, agent bindings, and approval
policy. Nothing is executed and no state is touched.

Examples:
  # Validate rentl.yaml in the working directory
  rentl validate

  # Validate a specific project file
  rentl validate --project game/rentl.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	project, err := config.LoadProject(projectFile)
	if err != nil {
		return err
	}
	// Validate what a run would actually execute: process config fills
	// the approval-policy and default-model gaps the file leaves.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	project.ApplyConfigDefaults(cfg)
	validated, err := config.ValidatePipeline(&project.Pipeline)
	if err != nil {
		return err
	}

	var enabled []model.Phase
	for _, pc := range validated.Phases {
		if pc.Enabled {
			enabled = append(enabled, pc.Phase)
		}
	}

	fmt.Printf("Project:  %s (%s -> %s)\n", project.Name, project.SourceLanguage, project.TargetLanguage)
	fmt.Printf("Source:   %s (%s)\n", project.Source.Path, project.Source.Format)
	fmt.Printf("Output:   %s (%s)\n", project.Output.Path, project.Output.Format)
	fmt.Printf("Approval: %s\n", validated.Approval)
	fmt.Printf("Phases:   %d enabled of %d configured\n", len(enabled), len(validated.Phases))
	for _, p := range enabled {
		if ac, ok := project.Agents[p]; ok {
			name := ac.Model.Model
			if name == "" {
				name = "default model"
			}
			fmt.Printf("  %-15s agent (%s)\n", p, name)
		} else {
			fmt.Printf("  %-15s built-in\n", p)
		}
	}
	fmt.Println("OK")
	return nil
}
