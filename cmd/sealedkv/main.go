package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/sealedkv/internal/kvlog"
	"github.com/cuemby/sealedkv/kverrors"
)

// exitCode is set by runE-wrapped commands so main can discriminate process
// exit status by kverrors.Kind instead of collapsing every failure to 1.
var exitCode = 1

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sealedkv",
	Short: "sealedkv - an embedded, transactional, encrypted key-value store",
	Long: `sealedkv is a command-line front end over an embedded, transactional,
encrypted key-value database. It wraps point reads, writes, deletes, prefix
scans, multi-operation transactions, and encrypted backup/restore.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("path", "", "Database directory path")
	rootCmd.PersistentFlags().String("password", "", "Database passphrase (omit for a plaintext database)")
	rootCmd.PersistentFlags().Bool("create", false, "Create the database if it does not already exist")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(containsCmd)
	rootCmd.AddCommand(listKeysCmd)
	rootCmd.AddCommand(partialCompareCmd)
	rootCmd.AddCommand(beginTxCmd)
	rootCmd.AddCommand(commitTxCmd)
	rootCmd.AddCommand(rollbackTxCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreBackupCmd)
	rootCmd.AddCommand(changePasswordCmd)
	rootCmd.AddCommand(changeBackupPasswordCmd)
	rootCmd.AddCommand(dumpCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	kvlog.Init(kvlog.Config{
		Level:      kvlog.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// exitCodeFor maps a *kverrors.Error's Kind to a process exit code. Kinds
// without a code of their own, and errors that are not *kverrors.Error,
// exit with 1.
func exitCodeFor(err error) int {
	e, ok := err.(*kverrors.Error)
	if !ok {
		return 1
	}
	switch e.Kind {
	case kverrors.NotFound:
		return 2
	case kverrors.WrongPassword:
		return 3
	case kverrors.WeakPassword:
		return 4
	case kverrors.NoPasswordSet:
		return 5
	case kverrors.ConversionError:
		return 6
	case kverrors.SerializationError:
		return 7
	case kverrors.FailedToDecryptData, kverrors.FailedToEncryptData:
		return 8
	case kverrors.IOError:
		return 9
	default:
		return 1
	}
}

// fail records the exit code for err and returns it, for use as a RunE tail:
// `return fail(err)`.
func fail(err error) error {
	exitCode = exitCodeFor(err)
	return err
}
