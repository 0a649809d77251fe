package sri

import "time"

// Estados normalizados de la recepción.
const (
	ReceptionReceived = "RECEIVED"              // RECIBIDA
	ReceptionRejected = "REJECTED_AT_RECEPTION" // DEVUELTA
	ReceptionUnknown  = "UNKNOWN"
	ReceptionError    = "ERROR" // falla de transporte
)

// Estados normalizados de la autorización.
const (
	AuthorizationAuthorized = "AUTHORIZED" // AUTORIZADO
	AuthorizationRejected   = "REJECTED"   // NO AUTORIZADO / RECHAZADA
	AuthorizationUnknown    = "UNKNOWN"    // sin autorizaciones o en procesamiento
	AuthorizationError      = "ERROR"      // falla de transporte
)

// Message mensaje devuelto por los web services.
type Message struct {
	Identifier     string `json:"identificador"`
	Text           string `json:"mensaje"`
	AdditionalInfo string `json:"informacion_adicional,omitempty"`
	Type           string `json:"tipo,omitempty"` // ERROR, ADVERTENCIA, INFORMATIVO
}

// ReceptionResult resultado de validarComprobante. Err solo se llena ante fallas de
// transporte (*domain.TransportError); los rechazos vienen en Status y Messages.
type ReceptionResult struct {
	Status   string
	Messages []Message
	Raw      string
	Err      error
}

// AuthorizationResult resultado de autorizacionComprobante.
type AuthorizationResult struct {
	Status      string
	Number      string
	Date        *time.Time
	Comprobante string // XML autorizado devuelto por el SRI
	Messages    []Message
	Raw         string
	Err         error
}
