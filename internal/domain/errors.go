package domain

import (
	"errors"
	"fmt"
	"time"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound       = errors.New("recurso no encontrado")
	ErrInvalidInput   = errors.New("entrada inválida")
	ErrDuplicate      = errors.New("recurso duplicado")
	ErrUnauthorized   = errors.New("no autorizado")
	ErrForbidden      = errors.New("acceso denegado")
	ErrConflict       = errors.New("conflicto con el estado actual")
	ErrNoConfig       = errors.New("no existe configuración activa del emisor")
	ErrAlreadyRunning = errors.New("ya hay una sincronización en curso")
)

// CertificateError falla al abrir o interpretar el PKCS#12 (clave incorrecta,
// archivo corrupto, sin llave privada o sin certificado).
type CertificateError struct {
	Reason string
	Err    error
}

func (e *CertificateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("certificado: %s: %v", e.Reason, e.Err)
	}
	return "certificado: " + e.Reason
}

func (e *CertificateError) Unwrap() error { return e.Err }

// SigningError falla al construir la firma o al verificar sus postcondiciones.
type SigningError struct {
	Reason string
	Err    error
}

func (e *SigningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("firma: %s: %v", e.Reason, e.Err)
	}
	return "firma: " + e.Reason
}

func (e *SigningError) Unwrap() error { return e.Err }

// Tipos de falla de transporte hacia un servicio externo.
const (
	TransportTimeout           = "TIMEOUT"
	TransportConnectionReset   = "CONNECTION_RESET"
	TransportConnectionRefused = "CONNECTION_REFUSED"
	TransportHostNotFound      = "HOST_NOT_FOUND"
	TransportHTTPStatus        = "HTTP_STATUS"
	TransportResponseTooLarge  = "RESPONSE_TOO_LARGE"
	TransportOther             = "OTHER"
)

// TransportError falla de red al hablar con el SRI. Es recuperable: se reintenta luego.
type TransportError struct {
	Kind     string
	Endpoint string
	Elapsed  time.Duration
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transporte %s hacia %s tras %s: %v", e.Kind, e.Endpoint, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
