package worker

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"loopmix/internal/config"
	"loopmix/internal/pkg/logger"
	"loopmix/internal/ports"
	"loopmix/internal/profile"
)

type Deps struct {
	Pool    *pgxpool.Pool
	RDB     *redis.Client
	Cfg     *config.Config
	SP      ports.StorageProvider
	Prof    profile.Profile
	Tracker *Tracker
	Log     *logger.Logger
}
