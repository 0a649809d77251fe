package billing

import (
	"context"
	"time"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	infrasri "github.com/jhoicas/loyverse-sri/internal/infrastructure/sri"
)

// XMLBuilder serializa la factura al XML del SRI. Si la factura no tiene clave de
// acceso, la genera y la deja en la entidad.
type XMLBuilder interface {
	Build(inv *entity.Invoice) ([]byte, error)
}

// Signer firma el XML con el PKCS#12 del emisor (XML-DSig enveloped).
type Signer interface {
	Sign(xml, p12 []byte, password string) ([]byte, error)
}

// Gateway web services de recepción y autorización del SRI.
// Los métodos nunca fallan: las fallas de transporte viajan en el resultado.
type Gateway interface {
	Submit(ctx context.Context, env, accessKey string, signedXML []byte) infrasri.ReceptionResult
	CheckAuthorization(ctx context.Context, env, accessKey string) infrasri.AuthorizationResult
}

// ReceiptSource origen de recibos del POS.
type ReceiptSource interface {
	ListReceipts(ctx context.Context, since, until time.Time) ([]entity.Receipt, error)
	GetCustomer(ctx context.Context, id string) (*entity.Customer, error)
}

// ReceiptSourceFactory devuelve un origen autenticado con el token del emisor.
type ReceiptSourceFactory func(token string) ReceiptSource

// RIDEGenerator genera la representación impresa (PDF) de una factura autorizada.
type RIDEGenerator interface {
	GenerateRIDE(ctx context.Context, inv *entity.Invoice, issuer *entity.IssuerConfig) ([]byte, error)
}
