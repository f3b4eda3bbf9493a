package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/sealedkv/store"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a fresh database (or open it if it already exists)",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = cmd.Flags().Set("create", "true")
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()
		fmt.Println("database ready")
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <key> <value>",
	Short: "Write a key/value pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		if err := s.Write(args[0], args[1]); err != nil {
			return fail(err)
		}
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <key>",
	Short: "Read the value stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		value, err := s.Read(args[0])
		if err != nil {
			return fail(err)
		}
		fmt.Println(value)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		if err := s.Delete(args[0]); err != nil {
			return fail(err)
		}
		return nil
	},
}

var containsCmd = &cobra.Command{
	Use:   "contains <key>",
	Short: "Report whether a key is present",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		found, err := s.HasKey(args[0])
		if err != nil {
			return fail(err)
		}
		fmt.Println(found)
		return nil
	},
}

var listKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List every key in ascending order",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		keys, err := s.Keys()
		if err != nil {
			return fail(err)
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var partialCompareCmd = &cobra.Command{
	Use:   "partial-compare <prefix>",
	Short: "List key/value pairs sharing a prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		pairs, err := s.PartialCompare(args[0])
		if err != nil {
			return fail(err)
		}
		for _, kv := range pairs {
			fmt.Printf("%s=%s\n", kv.Key, kv.Value)
		}
		return nil
	},
}

// begin-tx, commit-tx, and rollback-tx exist to mirror the library's
// transactional API on the command line, but a transaction's engine handle
// lives only inside the Storage instance that created it; it cannot outlive
// the process that ran begin-tx. Closing storage (below) rolls back any
// transaction still open when the command exits, so a later commit-tx or
// rollback-tx, run in its own process, finds no live transaction for the
// saved handle and fails with NotFound.
var beginTxCmd = &cobra.Command{
	Use:   "begin-tx",
	Short: "Begin a transaction, persisting its handle to .sealedkv-tx",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		h, err := s.BeginTransaction()
		if err != nil {
			return fail(err)
		}
		if err := saveTxHandle(h); err != nil {
			return fail(err)
		}
		fmt.Println(h.String())
		return nil
	},
}

var commitTxCmd = &cobra.Command{
	Use:   "commit-tx",
	Short: "Commit the transaction persisted in .sealedkv-tx",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		h, err := loadTxHandle()
		if err != nil {
			return fail(err)
		}
		if err := s.CommitTransaction(h); err != nil {
			return fail(err)
		}
		return clearTxHandle()
	},
}

var rollbackTxCmd = &cobra.Command{
	Use:   "rollback-tx",
	Short: "Roll back the transaction persisted in .sealedkv-tx",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		h, err := loadTxHandle()
		if err != nil {
			return fail(err)
		}
		if err := s.RollbackTransaction(h); err != nil {
			return fail(err)
		}
		return clearTxHandle()
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup <backup-path> <dek-path> <backup-password>",
	Short: "Write an encrypted backup artifact and its wrapped-DEK sidecar",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		if err := s.Backup(args[0], args[1], args[2]); err != nil {
			return fail(err)
		}
		return nil
	},
}

var restoreBackupCmd = &cobra.Command{
	Use:   "restore-backup <backup-path> <dek-path> <backup-password>",
	Short: "Restore a backup artifact into the open database",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		if err := s.RestoreBackup(args[0], args[1], args[2]); err != nil {
			return fail(err)
		}
		return nil
	},
}

var changePasswordCmd = &cobra.Command{
	Use:   "change-password <old-password> <new-password>",
	Short: "Rotate the database passphrase",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		if err := s.ChangePassword(args[0], args[1]); err != nil {
			return fail(err)
		}
		return nil
	},
}

var changeBackupPasswordCmd = &cobra.Command{
	Use:   "change-backup-password <dek-path> <old-password> <new-password>",
	Short: "Rotate the passphrase protecting a backup DEK sidecar",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		if err := s.ChangeBackupPassword(args[0], args[1], args[2]); err != nil {
			return fail(err)
		}
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every visible entry as a JSON array",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage(cmd)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		pairs, err := s.PartialCompare("")
		if err != nil {
			return fail(err)
		}

		out, err := json.MarshalIndent(dumpEntries(pairs), "", "  ")
		if err != nil {
			return fail(err)
		}
		fmt.Println(string(out))
		return nil
	},
}

type dumpEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func dumpEntries(pairs []store.KV) []dumpEntry {
	entries := make([]dumpEntry, len(pairs))
	for i, kv := range pairs {
		entries[i] = dumpEntry{Key: kv.Key, Value: kv.Value}
	}
	return entries
}
