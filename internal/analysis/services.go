// Package analysis assembles FallWatch's components for the realtime and
// file commands.
package analysis

import (
	"context"
	"github.com/tphakala/fallwatch/internal/errors"

	"github.com/tphakala/fallwatch/internal/auth"
	"github.com/tphakala/fallwatch/internal/batch"
	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/datastore"
	"github.com/tphakala/fallwatch/internal/datastore/repository"
	"github.com/tphakala/fallwatch/internal/eventlog"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/logger"
	"github.com/tphakala/fallwatch/internal/securefs"
	"github.com/tphakala/fallwatch/internal/settings"
)

// Services holds the storage backed services shared by both commands.
type Services struct {
	DB       *datastore.Manager
	Settings *settings.Store
	Events   *eventlog.Log
	Auth     *auth.Service
	Uploads  *securefs.SecureFS
	Outputs  *securefs.SecureFS
}

// OpenServices opens the database, seeds settings and the administrator
// account, and prepares the upload and output directories.
func OpenServices(ctx context.Context, s *conf.Settings) (*Services, error) {
	db, err := datastore.Open(&s.Database)
	if err != nil {
		return nil, err
	}
	svc := &Services{DB: db}

	svc.Settings = settings.NewStore(repository.NewSettingRepository(db.DB()))
	if err := svc.Settings.Seed(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}

	svc.Auth = auth.NewService(repository.NewUserRepository(db.DB()))
	if err := svc.Auth.SeedAdmin(ctx, s.Security.AdminUsername, s.Security.AdminPassword); err != nil {
		_ = svc.Close()
		return nil, err
	}

	svc.Events = eventlog.New(repository.NewEventRepository(db.DB()))

	if svc.Uploads, err = securefs.New(s.Storage.UploadDir); err != nil {
		_ = svc.Close()
		return nil, err
	}
	if svc.Outputs, err = securefs.New(s.Storage.OutputDir); err != nil {
		_ = svc.Close()
		return nil, err
	}

	return svc, nil
}

// Close releases the directories and the database.
func (svc *Services) Close() error {
	var errs []error
	if svc.Uploads != nil {
		errs = append(errs, svc.Uploads.Close())
	}
	if svc.Outputs != nil {
		errs = append(errs, svc.Outputs.Close())
	}
	if svc.DB != nil {
		errs = append(errs, svc.DB.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		GetLogger().Warn("error closing services", logger.Error(err))
	}
	return err
}

// ResolveFfmpeg returns the ffmpeg binary to use.
func ResolveFfmpeg(s *conf.Settings) (string, error) {
	return conf.ValidateToolPath(s.Capture.FfmpegPath, conf.GetFfmpegBinaryName())
}

// NewProcessor builds the batch processor over the shared services.
func (svc *Services) NewProcessor(s *conf.Settings, det inference.Detector, ffmpegPath string) *batch.Processor {
	return batch.NewProcessor(svc.Uploads, svc.Outputs, det, svc.Settings, svc.Events,
		batch.NewFFmpegCodec(ffmpegPath),
		batch.WithKeepUploads(s.Storage.KeepUploads))
}
