package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"lecturemate/server"
	"lecturemate/service"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(svc *service.Service) error {
				listen := cfg.Server.Addr
				if strings.TrimSpace(addr) != "" {
					listen = strings.TrimSpace(addr)
				}
				srv := server.NewServer(svc, server.Options{
					Addr:           listen,
					AllowedOrigins: cfg.Server.AllowedOrigins,
					MaxUploadBytes: cfg.MaxUploadBytes(),
				})
				return srv.Run(cmd.Context())
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overriding the configuration")
	return cmd
}
