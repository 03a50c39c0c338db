// Command herodb-mirror clones or refreshes a set of stores from a remote
// stores host, over `git clone --bare` for stores not yet present locally
// and `git fetch` for ones that already are.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/herodb/herodb/core"
	"github.com/herodb/herodb/objectstore"
)

func main() {
	var (
		authType string
		token    string
		keyPath  string
	)

	cmd := &cobra.Command{
		Use:   "herodb-mirror <remote_path> <local_path> <store> [<store>...]",
		Short: "Mirror stores from a remote herodb host into a local stores directory",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			remotePath, localPath, stores := args[0], args[1], args[2:]
			auth := &objectstore.RemoteAuth{Type: objectstore.AuthType(authType), Token: token, KeyPath: keyPath}
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))
			return mirrorStores(remotePath, localPath, stores, auth, log)
		},
	}

	cmd.Flags().StringVar(&authType, "auth", "none", "auth type: none, token, ssh, basic")
	cmd.Flags().StringVar(&token, "token", "", "token for --auth=token")
	cmd.Flags().StringVar(&keyPath, "key", "", "private key path for --auth=ssh")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func mirrorStores(remotePath, localPath string, stores []string, auth *objectstore.RemoteAuth, log *slog.Logger) error {
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}

	for _, storeName := range stores {
		remoteURL := remoteStoreURL(remotePath, storeName)
		localDir := filepath.Join(localPath, storeName+".git")

		if _, err := os.Stat(localDir); err == nil {
			log.Info("fetching", "store", storeName, "dir", localDir)
			persist, err := objectstore.Open(localDir, core.Identity{Name: "herodb-mirror", Email: "herodb-mirror@localhost"})
			if err != nil {
				return fmt.Errorf("open %s: %w", localDir, err)
			}
			if err := persist.Fetch("origin", auth); err != nil {
				return fmt.Errorf("fetch %s: %w", storeName, err)
			}
			continue
		}

		log.Info("cloning", "store", storeName, "remote", remoteURL, "dir", localDir)
		if _, err := objectstore.CloneBare(localDir, remoteURL, auth); err != nil {
			return fmt.Errorf("clone %s: %w", storeName, err)
		}
	}
	return nil
}

// remoteStoreURL joins a remote_path (a plain directory, or an
// [user@]host:path scp-style location) with a store's .git directory name.
func remoteStoreURL(remotePath, storeName string) string {
	sep := "/"
	if len(remotePath) > 0 && remotePath[len(remotePath)-1] == ':' {
		sep = ""
	}
	return remotePath + sep + storeName + ".git"
}
