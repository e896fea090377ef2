package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/totegamma/lostfound/client"
)

type remoteFlags struct {
	server string
	office string
	apiKey string
}

func (f *remoteFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "http://localhost:8000", "gateway base URL")
	cmd.Flags().StringVar(&f.office, "office", "", "office name (defaults to the gateway default)")
	cmd.Flags().StringVar(&f.apiKey, "api-key", os.Getenv("LOSTFOUND_API_KEY"), "office api key")
}

func (f *remoteFlags) client() (*client.Client, client.Options) {
	return client.New(f.server, f.apiKey), client.Options{Office: f.office}
}

func newFetchCmd() *cobra.Command {
	var flags remoteFlags
	cmd := &cobra.Command{
		Use:   "fetch <id>",
		Short: "Show one registry item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, opts := flags.client()
			item, err := c.GetItem(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, item)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		flags    remoteFlags
		returned string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registry items",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *bool
			if returned != "" {
				v, err := strconv.ParseBool(returned)
				if err != nil {
					return err
				}
				filter = &v
			}

			c, opts := flags.client()
			items, err := c.ListItems(cmd.Context(), filter, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, items)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&returned, "returned", "", "filter by returned flag (true or false)")
	return cmd
}

func newReturnCmd() *cobra.Command {
	var flags remoteFlags
	cmd := &cobra.Command{
		Use:   "return <id>",
		Short: "Mark an item as handed back to its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, opts := flags.client()
			result, err := c.MarkReturned(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newImportCmd() *cobra.Command {
	var flags remoteFlags
	cmd := &cobra.Command{
		Use:   "import <file.xml>",
		Short: "Publish an item from a ZgloszenieZguby XML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			c, opts := flags.client()
			result, err := c.ImportXML(cmd.Context(), doc, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	flags.bind(cmd)
	return cmd
}
