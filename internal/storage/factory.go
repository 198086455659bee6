// Package storage builds the configured StorageProvider. Configuration
// comes in explicitly; nothing here reads the environment.
package storage

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"loopmix/internal/adapters/storage/gdrive"
	"loopmix/internal/adapters/storage/localfs"
	"loopmix/internal/config"
)

func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.StorageProvider {
	case "localfs":
		if cfg.StorageLocalRoot == "" {
			return nil, fmt.Errorf("localfs provider requires LOOPMIX_STORAGE_LOCAL_ROOT")
		}
		return localfs.New(cfg.StorageLocalRoot), nil

	case "gdrive":
		return newGDriveProvider(ctx, cfg)

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.StorageProvider)
	}
}

func newGDriveProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	if cfg.GDriveClientID == "" || cfg.GDriveClientSecret == "" || cfg.GDriveRefreshToken == "" {
		return nil, fmt.Errorf("gdrive provider requires client id, client secret, and refresh token")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GDriveClientID,
		ClientSecret: cfg.GDriveClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.GDriveRefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewClient(srv, cfg.GDriveFolderID), nil
}
