package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/totegamma/lostfound/internal/config"
	"github.com/totegamma/lostfound/internal/infra/artifact"
	"github.com/totegamma/lostfound/internal/infra/registry"
	"github.com/totegamma/lostfound/internal/service"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Parse every office registry strictly and report record counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store := artifact.New(cfg.Server.DataDir, cfg.Server.AssetBaseURL)
			failed := 0
			for _, o := range cfg.DomainOffices() {
				s := registry.Open(store.RegistryPath(o.Name), registry.Options{})
				n, err := s.Check(cmd.Context())
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tFAIL\t%v\n", o.Name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tOK\t%d records\n", o.Name, n)
			}
			if failed > 0 {
				return fmt.Errorf("%d registries failed verification", failed)
			}
			return nil
		},
	}
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <api-key>",
		Short: "Print the apiKeyHash value for an office api key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
