package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
)

var _ repository.ConfigRepository = (*ConfigRepo)(nil)

// ConfigRepo implementación de ConfigRepository.
type ConfigRepo struct {
	q  Querier
	tx *TxRunner
}

// NewConfigRepository construye el adaptador. Con tx != nil, Save desactiva las demás
// configuraciones y guarda la nueva en una sola transacción.
func NewConfigRepository(q Querier, tx *TxRunner) *ConfigRepo {
	return &ConfigRepo{q: q, tx: tx}
}

const configColumns = `
	id, environment, ruc, legal_name, trade_name, matrix_address, establishment_address,
	establishment, emission_point, email, phone, iva_rate, special_taxpayer,
	accounting_required, loyverse_token, certificate_b64, certificate_password,
	auto_sync, sync_interval_minutes, last_sync_at, active, created_at, updated_at`

// GetActive devuelve la configuración activa más reciente.
func (r *ConfigRepo) GetActive(ctx context.Context) (*entity.IssuerConfig, error) {
	query := `SELECT ` + configColumns + ` FROM issuer_configs WHERE active ORDER BY updated_at DESC LIMIT 1`
	var c entity.IssuerConfig
	err := r.q.QueryRow(ctx, query).Scan(
		&c.ID, &c.Environment, &c.RUC, &c.LegalName, &c.TradeName, &c.MatrixAddress, &c.EstablishmentAddress,
		&c.Establishment, &c.EmissionPoint, &c.Email, &c.Phone, &c.IVARate, &c.SpecialTaxpayer,
		&c.AccountingRequired, &c.LoyverseToken, &c.CertificateB64, &c.CertificatePassword,
		&c.AutoSync, &c.SyncIntervalMinutes, &c.LastSyncAt, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoConfig
		}
		return nil, fmt.Errorf("get active config: %w", err)
	}
	return &c, nil
}

// Save inserta o actualiza (upsert por id) y deja esta configuración como la única activa.
func (r *ConfigRepo) Save(ctx context.Context, c *entity.IssuerConfig) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.New().String()
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Active = true

	save := func(q Querier) error {
		if _, err := q.Exec(ctx, `UPDATE issuer_configs SET active = FALSE WHERE id <> $1`, c.ID); err != nil {
			return fmt.Errorf("deactivate configs: %w", err)
		}
		query := `
			INSERT INTO issuer_configs (` + configColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
			ON CONFLICT (id) DO UPDATE SET
			    environment = EXCLUDED.environment,
			    ruc = EXCLUDED.ruc,
			    legal_name = EXCLUDED.legal_name,
			    trade_name = EXCLUDED.trade_name,
			    matrix_address = EXCLUDED.matrix_address,
			    establishment_address = EXCLUDED.establishment_address,
			    establishment = EXCLUDED.establishment,
			    emission_point = EXCLUDED.emission_point,
			    email = EXCLUDED.email,
			    phone = EXCLUDED.phone,
			    iva_rate = EXCLUDED.iva_rate,
			    special_taxpayer = EXCLUDED.special_taxpayer,
			    accounting_required = EXCLUDED.accounting_required,
			    loyverse_token = EXCLUDED.loyverse_token,
			    certificate_b64 = EXCLUDED.certificate_b64,
			    certificate_password = EXCLUDED.certificate_password,
			    auto_sync = EXCLUDED.auto_sync,
			    sync_interval_minutes = EXCLUDED.sync_interval_minutes,
			    last_sync_at = COALESCE(EXCLUDED.last_sync_at, issuer_configs.last_sync_at),
			    active = TRUE,
			    updated_at = EXCLUDED.updated_at`
		_, err := q.Exec(ctx, query,
			c.ID, c.Environment, c.RUC, c.LegalName, c.TradeName, c.MatrixAddress, c.EstablishmentAddress,
			c.Establishment, c.EmissionPoint, c.Email, c.Phone, c.IVARate, c.SpecialTaxpayer,
			c.AccountingRequired, c.LoyverseToken, c.CertificateB64, c.CertificatePassword,
			c.AutoSync, c.SyncIntervalMinutes, c.LastSyncAt, c.Active, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		return nil
	}
	if r.tx == nil {
		return save(r.q)
	}
	return r.tx.Run(ctx, save)
}

// UpdateLastSync avanza la marca de sincronización; nunca la retrocede.
func (r *ConfigRepo) UpdateLastSync(ctx context.Context, configID string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE issuer_configs
		SET last_sync_at = GREATEST(COALESCE(last_sync_at, $2), $2), updated_at = now()
		WHERE id = $1`, configID, at)
	if err != nil {
		return fmt.Errorf("update last sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update last sync %s: %w", configID, domain.ErrNotFound)
	}
	return nil
}
