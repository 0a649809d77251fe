package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
)

// ConfigRequest body de PUT /api/config. Certificado y clave vacíos conservan los
// guardados; lo mismo aplica al token de Loyverse.
type ConfigRequest struct {
	Environment          string          `json:"environment"`
	RUC                  string          `json:"ruc"`
	LegalName            string          `json:"legal_name"`
	TradeName            string          `json:"trade_name"`
	MatrixAddress        string          `json:"matrix_address"`
	EstablishmentAddress string          `json:"establishment_address,omitempty"`
	Establishment        string          `json:"establishment"`
	EmissionPoint        string          `json:"emission_point"`
	Email                string          `json:"email"`
	Phone                string          `json:"phone,omitempty"`
	IVARate              decimal.Decimal `json:"iva_rate"`
	SpecialTaxpayer      string          `json:"special_taxpayer,omitempty"`
	AccountingRequired   bool            `json:"accounting_required"`
	LoyverseToken        string          `json:"loyverse_token,omitempty"`
	CertificateB64       string          `json:"certificate_b64,omitempty"`
	CertificatePassword  string          `json:"certificate_password,omitempty"`
	AutoSync             bool            `json:"auto_sync"`
	SyncIntervalMinutes  int             `json:"sync_interval_minutes"`
}

// ToEntity convierte el body al perfil del emisor.
func (r *ConfigRequest) ToEntity() *entity.IssuerConfig {
	return &entity.IssuerConfig{
		Environment:          r.Environment,
		RUC:                  r.RUC,
		LegalName:            r.LegalName,
		TradeName:            r.TradeName,
		MatrixAddress:        r.MatrixAddress,
		EstablishmentAddress: r.EstablishmentAddress,
		Establishment:        r.Establishment,
		EmissionPoint:        r.EmissionPoint,
		Email:                r.Email,
		Phone:                r.Phone,
		IVARate:              r.IVARate,
		SpecialTaxpayer:      r.SpecialTaxpayer,
		AccountingRequired:   r.AccountingRequired,
		LoyverseToken:        r.LoyverseToken,
		CertificateB64:       r.CertificateB64,
		CertificatePassword:  r.CertificatePassword,
		AutoSync:             r.AutoSync,
		SyncIntervalMinutes:  r.SyncIntervalMinutes,
	}
}

// ConfigResponse perfil del emisor sin secretos: nunca se devuelven el certificado,
// su clave ni el token.
type ConfigResponse struct {
	ID                   string          `json:"id"`
	Environment          string          `json:"environment"`
	RUC                  string          `json:"ruc"`
	LegalName            string          `json:"legal_name"`
	TradeName            string          `json:"trade_name"`
	MatrixAddress        string          `json:"matrix_address"`
	EstablishmentAddress string          `json:"establishment_address,omitempty"`
	Establishment        string          `json:"establishment"`
	EmissionPoint        string          `json:"emission_point"`
	Email                string          `json:"email"`
	Phone                string          `json:"phone,omitempty"`
	IVARate              decimal.Decimal `json:"iva_rate"`
	SpecialTaxpayer      string          `json:"special_taxpayer,omitempty"`
	AccountingRequired   bool            `json:"accounting_required"`
	HasLoyverseToken     bool            `json:"has_loyverse_token"`
	HasCertificate       bool            `json:"has_certificate"`
	AutoSync             bool            `json:"auto_sync"`
	SyncIntervalMinutes  int             `json:"sync_interval_minutes"`
	LastSyncAt           *time.Time      `json:"last_sync_at,omitempty"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// NewConfigResponse arma la respuesta.
func NewConfigResponse(c *entity.IssuerConfig) ConfigResponse {
	return ConfigResponse{
		ID:                   c.ID,
		Environment:          c.Environment,
		RUC:                  c.RUC,
		LegalName:            c.LegalName,
		TradeName:            c.TradeName,
		MatrixAddress:        c.MatrixAddress,
		EstablishmentAddress: c.EstablishmentAddress,
		Establishment:        c.Establishment,
		EmissionPoint:        c.EmissionPoint,
		Email:                c.Email,
		Phone:                c.Phone,
		IVARate:              c.IVARate,
		SpecialTaxpayer:      c.SpecialTaxpayer,
		AccountingRequired:   c.AccountingRequired,
		HasLoyverseToken:     c.LoyverseToken != "",
		HasCertificate:       c.HasCertificate(),
		AutoSync:             c.AutoSync,
		SyncIntervalMinutes:  c.SyncIntervalMinutes,
		LastSyncAt:           c.LastSyncAt,
		UpdatedAt:            c.UpdatedAt,
	}
}
