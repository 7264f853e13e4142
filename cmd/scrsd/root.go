package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scrsd",
		Short: "Android device control and agent automation server.",
		Long:  "scrsd registers Android devices over adb, streams their screens over websockets, and drives an LLM-backed agent loop against them.",
	}

	root.AddCommand(newServeCmd())
	return root
}
