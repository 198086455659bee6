// Package publisher uploads the final artifact to object storage under a
// deterministic key, so retried publishes overwrite instead of duplicating.
package publisher

import (
	"context"
	"fmt"
	"os"

	"loopmix/internal/pkg/errors"
	"loopmix/internal/pkg/logger"
	"loopmix/internal/ports"
)

// Publisher uploads rendered artifacts.
type Publisher struct {
	sp  ports.StorageProvider
	log *logger.Logger
}

func New(sp ports.StorageProvider, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Publisher{
		sp:  sp,
		log: log.WithComponent("publisher"),
	}
}

// Key derives the destination object key. It is a pure function of
// (channel, job): the same job always targets the same key.
func Key(channelID string, jobID int64) string {
	return fmt.Sprintf("renders/%s/%d.mp4", channelID, jobID)
}

// Publish uploads localPath and returns the object key and byte size.
// The local file is removed only after a verified-successful upload; on
// failure it is retained on disk for manual recovery and its path logged.
func (p *Publisher) Publish(ctx context.Context, localPath, channelID string, jobID int64) (string, int64, error) {
	log := p.log.FromContext(ctx)
	key := Key(channelID, jobID)

	st, err := os.Stat(localPath)
	if err != nil {
		return "", 0, errors.WrapWithCode(err, errors.CodePublish, "publisher.stat", "artifact file missing")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", 0, errors.WrapWithCode(err, errors.CodePublish, "publisher.open", "opening artifact")
	}
	defer f.Close()

	out, err := p.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   key,
		ContentType: "video/mp4",
		Reader:      f,
		Size:        st.Size(),
	})
	if err != nil {
		log.Error("upload failed, artifact retained",
			"key", key,
			"local_path", localPath,
			"error", err.Error(),
		)
		return "", 0, errors.WrapWithCode(err, errors.CodePublish, "publisher.put", "uploading artifact")
	}

	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove published artifact", "local_path", localPath, "error", err.Error())
	}

	// The provider's key is what later reads must use. For localfs it is
	// the derived key; for gdrive it is the Drive fileId.
	log.Info("artifact published", "key", out.ObjectKey, "size_bytes", out.Size)
	return out.ObjectKey, out.Size, nil
}
