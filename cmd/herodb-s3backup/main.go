// Command herodb-s3backup mirrors every store under a stores directory
// into a local backup directory, tars each one, and uploads the tarball to
// an S3 bucket.
package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/herodb/herodb/core"
	"github.com/herodb/herodb/objectstore"
)

func main() {
	cmd := &cobra.Command{
		Use:   "herodb-s3backup <stores_dir> <backup_stores_dir> <bucket>",
		Short: "Back up every store under stores_dir to an S3 bucket",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			storesDir, backupDir, bucket := args[0], args[1], args[2]
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))
			return run(cmd.Context(), storesDir, backupDir, bucket, log)
		},
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, storesDir, backupDir, bucket string, log *slog.Logger) error {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	entries, err := os.ReadDir(storesDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", storesDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ".git") {
			continue
		}
		storeName := entry.Name()
		if err := backupOne(ctx, client, storesDir, backupDir, bucket, storeName, log); err != nil {
			log.Warn("backup failed", "store", storeName, "error", err)
		}
	}
	return nil
}

func backupOne(ctx context.Context, client *s3.Client, storesDir, backupDir, bucket, storeName string, log *slog.Logger) error {
	sourceDir := filepath.Join(storesDir, storeName)
	backupRepoDir := filepath.Join(backupDir, storeName)
	identity := core.Identity{Name: "herodb-s3backup", Email: "herodb-s3backup@localhost"}

	if _, err := os.Stat(backupRepoDir); err == nil {
		persist, err := objectstore.Open(backupRepoDir, identity)
		if err != nil {
			return fmt.Errorf("open backup clone: %w", err)
		}
		if err := persist.Fetch("origin", nil); err != nil {
			return fmt.Errorf("fetch into backup clone: %w", err)
		}
	} else {
		if _, err := objectstore.CloneBare(backupRepoDir, sourceDir, nil); err != nil {
			return fmt.Errorf("clone backup: %w", err)
		}
	}

	log.Info("tarring", "store", storeName)
	tarballPath := backupRepoDir + ".tar.gz"
	if err := tarGzDir(backupRepoDir, tarballPath); err != nil {
		return fmt.Errorf("tar %s: %w", backupRepoDir, err)
	}
	defer os.Remove(tarballPath)

	log.Info("uploading", "store", storeName, "bucket", bucket)
	if err := uploadFile(ctx, client, bucket, storeName+".tar.gz", tarballPath); err != nil {
		return fmt.Errorf("upload %s: %w", storeName, err)
	}
	return nil
}

func tarGzDir(dir, destPath string) error {
	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	gz := gzip.NewWriter(dest)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	base := filepath.Base(dir)
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.Join(base, rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

func uploadFile(ctx context.Context, client *s3.Client, bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   f,
	})
	return err
}
