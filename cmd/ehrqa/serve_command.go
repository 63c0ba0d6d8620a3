package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"ehrqa/internal/app"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the QA HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = strings.TrimSpace(addr)
			}
			return ctx.withApplication(cmd, func(runCtx context.Context, a *app.Application) error {
				return a.Run(runCtx)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, \":8080\")")
	return cmd
}
