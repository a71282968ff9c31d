// Package main provides a CLI tool to migrate the token file from plaintext to encrypted storage.
//
// This tool rewrites the access and refresh tokens as AES-256-GCM sealed values ("enc:v1:...").
// A file that is already sealed is left untouched.
//
// Usage:
//
//	migrate-tokens [--dry-run] [--file PATH]
//
// Flags:
//
//	--dry-run: Show what would be migrated without making changes
//	--file: Token file to migrate (default: TOKEN_FILE or ./authTokens.json)
//
// Environment Variables:
//
//	TOKEN_ENCRYPTION_KEY: Base64-encoded 32-byte encryption key (required)
//
// Example:
//
//	export TOKEN_ENCRYPTION_KEY="$(openssl rand -base64 32)"
//	./migrate-tokens --dry-run
//	./migrate-tokens
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/onnwee/ezclip/crypto"
	"github.com/onnwee/ezclip/tokenstore"
)

func main() {
	defaultFile := os.Getenv("TOKEN_FILE")
	if defaultFile == "" {
		defaultFile = "./authTokens.json"
	}
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	file := flag.String("file", defaultFile, "Token file to migrate")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	encryptionKey := os.Getenv("TOKEN_ENCRYPTION_KEY")
	if encryptionKey == "" {
		slog.Error("TOKEN_ENCRYPTION_KEY environment variable is required for migration")
		os.Exit(1)
	}
	encryptor, err := crypto.NewAESEncryptor(encryptionKey)
	if err != nil {
		slog.Error("failed to initialize encryptor", slog.Any("error", err))
		os.Exit(1)
	}

	migrated, err := migrateFile(*file, encryptor, *dryRun)
	if err != nil {
		slog.Error("migration failed", slog.String("file", *file), slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("migration completed successfully",
		slog.String("file", *file),
		slog.Bool("migrated", migrated),
		slog.Bool("dry_run", *dryRun))
}

// migrateFile seals the plaintext tokens in path. It reports whether the file
// needed (or, in dry-run mode, would need) rewriting.
func migrateFile(path string, encryptor crypto.Encryptor, dryRun bool) (bool, error) {
	store := tokenstore.New(path, encryptor)
	sealed, err := store.Sealed()
	if err != nil {
		return false, err
	}
	if sealed {
		if _, ok := store.Load(); !ok {
			return false, errors.New("token file is sealed with a different key")
		}
		slog.Info("token file already encrypted; nothing to migrate")
		return false, nil
	}

	// The encrypted store reads plaintext values unchanged.
	p, ok := store.Load()
	if !ok {
		return false, fmt.Errorf("no usable tokens in %s", path)
	}
	if dryRun {
		slog.Info("would encrypt token file (dry-run)")
		return true, nil
	}
	if err := store.Save(p); err != nil {
		return false, err
	}

	// Verify the rewrite decrypts back to the same pair.
	got, ok := store.Load()
	if !ok || got != p {
		return true, errors.New("verification failed: re-read tokens differ")
	}
	return true, nil
}
