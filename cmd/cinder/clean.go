package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cinder/internal/backend"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop the artifact cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := backend.OpenArtifactCache("cinder")
		if err != nil {
			return err
		}
		if err := cache.DropAll(); err != nil {
			return err
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			fmt.Println("artifact cache dropped")
		}
		return nil
	},
}
