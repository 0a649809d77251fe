package billing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
	domainsri "github.com/jhoicas/loyverse-sri/internal/domain/sri"
	"github.com/jhoicas/loyverse-sri/internal/infrastructure/sri/signer"
)

// ConfigUseCase lectura y guardado del perfil del emisor.
type ConfigUseCase struct {
	configs   repository.ConfigRepository
	validator *domainsri.Validator
	clock     clockwork.Clock
}

// NewConfigUseCase construye el caso de uso.
func NewConfigUseCase(configs repository.ConfigRepository, validator *domainsri.Validator, clock clockwork.Clock) *ConfigUseCase {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConfigUseCase{configs: configs, validator: validator, clock: clock}
}

// Get devuelve la configuración activa.
func (uc *ConfigUseCase) Get(ctx context.Context) (*entity.IssuerConfig, error) {
	return uc.configs.GetActive(ctx)
}

// Save valida y guarda la configuración. Si in no trae certificado o clave se
// conservan los de la configuración activa. Un certificado nuevo se abre antes de
// guardarlo para rechazar claves incorrectas.
func (uc *ConfigUseCase) Save(ctx context.Context, in *entity.IssuerConfig) (*entity.IssuerConfig, error) {
	current, err := uc.configs.GetActive(ctx)
	switch {
	case err == nil:
		in.ID = current.ID
		in.CreatedAt = current.CreatedAt
		in.LastSyncAt = current.LastSyncAt
		if in.CertificateB64 == "" {
			in.CertificateB64 = current.CertificateB64
			if in.CertificatePassword == "" {
				in.CertificatePassword = current.CertificatePassword
			}
		}
		if in.LoyverseToken == "" {
			in.LoyverseToken = current.LoyverseToken
		}
	case errors.Is(err, domain.ErrNoConfig) || errors.Is(err, domain.ErrNotFound):
		in.ID = uuid.New().String()
		in.CreatedAt = uc.clock.Now()
	default:
		return nil, err
	}

	if err := uc.validator.ValidateConfig(in); err != nil {
		return nil, err
	}
	if in.HasCertificate() && (current == nil || in.CertificateB64 != current.CertificateB64) {
		if err := checkCertificate(in.CertificateB64, in.CertificatePassword); err != nil {
			return nil, err
		}
	}

	in.Active = true
	in.UpdatedAt = uc.clock.Now()
	if err := uc.configs.Save(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

func checkCertificate(b64, password string) error {
	p12, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("%w: el certificado no es base64 válido", domain.ErrInvalidInput)
	}
	defer clear(p12)
	if _, err := signer.LoadFromP12(p12, password); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}
