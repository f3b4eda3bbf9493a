package main

import (
	"github.com/spf13/cobra"

	"github.com/cuemby/sealedkv/store"
)

// openStorage opens the database named by the --path/--password/--create
// persistent flags, dispatching to store.New or store.Open.
func openStorage(cmd *cobra.Command) (*store.Storage, error) {
	path, _ := cmd.Flags().GetString("path")
	password, _ := cmd.Flags().GetString("password")
	create, _ := cmd.Flags().GetBool("create")

	cfg := store.Config{Path: path}
	if cmd.Flags().Changed("password") {
		cfg.Password = &password
	}

	if create {
		return store.New(cfg)
	}
	return store.Open(cfg)
}
