package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taigrr/glimpse/pkg/detect"
)

func newDetectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file...>",
		Short: "Print the detected format of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					a.logger.Error("read", "file", path, "err", err)
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", path, detect.Unknown)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", path, detect.Detect(data, path))
			}
			return nil
		},
	}
}
