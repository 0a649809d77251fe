package repository

import (
	"context"
	"time"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
)

// ConfigRepository define el puerto de persistencia para la configuración del emisor.
// Solo una configuración está activa a la vez.
type ConfigRepository interface {
	GetActive(ctx context.Context) (*entity.IssuerConfig, error)
	// Save crea o actualiza la configuración y la marca como activa.
	Save(ctx context.Context, cfg *entity.IssuerConfig) error
	UpdateLastSync(ctx context.Context, configID string, at time.Time) error
}
