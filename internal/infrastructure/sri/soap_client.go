package sri

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
	"github.com/jhoicas/loyverse-sri/pkg/sri"
)

// ── Constantes ─────────────────────────────────────────────────────────────────

const (
	soapNS          = "http://schemas.xmlsoap.org/soap/envelope/"
	nsRecepcion     = "http://ec.gob.sri.ws.recepcion"
	nsAutorizacion  = "http://ec.gob.sri.ws.autorizacion"
	maxResponseSize = 8 << 20 // la autorización trae el comprobante completo

	DefaultReceptionURLTest     = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline?wsdl"
	DefaultReceptionURLProd     = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline?wsdl"
	DefaultAuthorizationURLTest = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline?wsdl"
	DefaultAuthorizationURLProd = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline?wsdl"
)

// Endpoints URLs de los web services por ambiente.
type Endpoints struct {
	ReceptionTest     string
	ReceptionProd     string
	AuthorizationTest string
	AuthorizationProd string
}

func (e Endpoints) reception(env string) string {
	if env == sri.AmbienteProduccion {
		return orDefault(e.ReceptionProd, DefaultReceptionURLProd)
	}
	return orDefault(e.ReceptionTest, DefaultReceptionURLTest)
}

func (e Endpoints) authorization(env string) string {
	if env == sri.AmbienteProduccion {
		return orDefault(e.AuthorizationProd, DefaultAuthorizationURLProd)
	}
	return orDefault(e.AuthorizationTest, DefaultAuthorizationURLTest)
}

// ── Cliente ────────────────────────────────────────────────────────────────────

// SOAPClient habla con los web services offline del SRI.
// Nunca devuelve error: las fallas de transporte viajan dentro del resultado.
type SOAPClient struct {
	http      *resty.Client
	endpoints Endpoints
	log       *logger.Logger
}

// NewSOAPClient construye el cliente con el timeout indicado (60 s si es 0).
func NewSOAPClient(endpoints Endpoints, timeout time.Duration, log *logger.Logger) *SOAPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "text/xml;charset=UTF-8").
		SetHeader("SOAPAction", `""`)
	return &SOAPClient{http: client, endpoints: endpoints, log: log.Component("sri_soap")}
}

// ── Estructuras SOAP de petición ───────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	XmlnsS  string   `xml:"xmlns:soapenv,attr"`
	XmlnsEc string   `xml:"xmlns:ec,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type validarComprobanteBody struct {
	XMLName xml.Name `xml:"ec:validarComprobante"`
	XML     string   `xml:"xml"` // comprobante firmado en base64
}

type autorizacionComprobanteBody struct {
	XMLName   xml.Name `xml:"ec:autorizacionComprobante"`
	AccessKey string   `xml:"claveAccesoComprobante"`
}

// ── Estructuras SOAP de respuesta ──────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Reception     *receptionResponse     `xml:"validarComprobanteResponse>RespuestaRecepcionComprobante"`
	Authorization *authorizationResponse `xml:"autorizacionComprobanteResponse>RespuestaAutorizacionComprobante"`
	Fault         *soapFault             `xml:"Fault"`
}

type receptionResponse struct {
	Estado       string           `xml:"estado"`
	Comprobantes []comprobanteMsg `xml:"comprobantes>comprobante"`
}

type comprobanteMsg struct {
	ClaveAcceso string       `xml:"claveAcceso"`
	Mensajes    []mensajeXML `xml:"mensajes>mensaje"`
}

type mensajeXML struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

type authorizationResponse struct {
	ClaveAccesoConsultada string            `xml:"claveAccesoConsultada"`
	NumeroComprobantes    string            `xml:"numeroComprobantes"`
	Autorizaciones        []autorizacionXML `xml:"autorizaciones>autorizacion"`
}

type autorizacionXML struct {
	Estado             string       `xml:"estado"`
	NumeroAutorizacion string       `xml:"numeroAutorizacion"`
	FechaAutorizacion  string       `xml:"fechaAutorizacion"`
	Ambiente           string       `xml:"ambiente"`
	Comprobante        string       `xml:"comprobante"`
	Mensajes           []mensajeXML `xml:"mensajes>mensaje"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Recepción ──────────────────────────────────────────────────────────────────

// Submit envía el comprobante firmado a validarComprobante.
func (c *SOAPClient) Submit(ctx context.Context, env, accessKey string, signedXML []byte) ReceptionResult {
	endpoint := c.endpoints.reception(env)
	body := &validarComprobanteBody{XML: base64.StdEncoding.EncodeToString(signedXML)}

	raw, err := c.call(ctx, endpoint, nsRecepcion, accessKey, body)
	if err != nil {
		return ReceptionResult{Status: ReceptionError, Raw: string(raw), Err: err}
	}
	return parseReception(raw)
}

func parseReception(raw []byte) ReceptionResult {
	res := ReceptionResult{Status: ReceptionUnknown, Raw: string(raw)}
	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		res.Messages = []Message{{Identifier: "XML", Text: "respuesta de recepción ilegible", AdditionalInfo: err.Error(), Type: "ERROR"}}
		return res
	}
	if f := env.Body.Fault; f != nil {
		res.Messages = []Message{faultMessage(f)}
		return res
	}
	r := env.Body.Reception
	if r == nil {
		res.Messages = []Message{{Identifier: "XML", Text: "respuesta de recepción sin RespuestaRecepcionComprobante", Type: "ERROR"}}
		return res
	}
	for _, comp := range r.Comprobantes {
		res.Messages = append(res.Messages, toMessages(comp.Mensajes)...)
	}
	switch strings.ToUpper(strings.TrimSpace(r.Estado)) {
	case sri.EstadoRecibida:
		res.Status = ReceptionReceived
	case sri.EstadoDevuelta:
		res.Status = ReceptionRejected
	}
	return res
}

// ── Autorización ───────────────────────────────────────────────────────────────

// CheckAuthorization consulta autorizacionComprobante para la clave de acceso.
func (c *SOAPClient) CheckAuthorization(ctx context.Context, env, accessKey string) AuthorizationResult {
	endpoint := c.endpoints.authorization(env)
	body := &autorizacionComprobanteBody{AccessKey: accessKey}

	raw, err := c.call(ctx, endpoint, nsAutorizacion, accessKey, body)
	if err != nil {
		return AuthorizationResult{Status: AuthorizationError, Raw: string(raw), Err: err}
	}
	return parseAuthorization(raw)
}

func parseAuthorization(raw []byte) AuthorizationResult {
	res := AuthorizationResult{Status: AuthorizationUnknown, Raw: string(raw)}
	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		res.Messages = []Message{{Identifier: "XML", Text: "respuesta de autorización ilegible", AdditionalInfo: err.Error(), Type: "ERROR"}}
		return res
	}
	if f := env.Body.Fault; f != nil {
		res.Messages = []Message{faultMessage(f)}
		return res
	}
	r := env.Body.Authorization
	if r == nil || len(r.Autorizaciones) == 0 {
		return res
	}

	// Con varias autorizaciones prevalece la AUTORIZADO.
	chosen := r.Autorizaciones[0]
	for _, a := range r.Autorizaciones {
		if strings.EqualFold(strings.TrimSpace(a.Estado), sri.EstadoAutorizado) {
			chosen = a
			break
		}
	}
	res.Messages = toMessages(chosen.Mensajes)

	switch strings.ToUpper(strings.TrimSpace(chosen.Estado)) {
	case sri.EstadoAutorizado:
		res.Status = AuthorizationAuthorized
		res.Number = strings.TrimSpace(chosen.NumeroAutorizacion)
		res.Date = parseAuthorizationDate(chosen.FechaAutorizacion)
		res.Comprobante = strings.TrimSpace(chosen.Comprobante)
	case sri.EstadoNoAutorizado, sri.EstadoRechazada, "RECHAZADO":
		res.Status = AuthorizationRejected
	}
	return res
}

var authorizationDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
}

func parseAuthorizationDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range authorizationDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// ── Transporte ─────────────────────────────────────────────────────────────────

// call serializa el envelope, hace el POST y devuelve el cuerpo crudo.
// Una respuesta HTTP no exitosa sin SOAP Fault se trata como falla de transporte.
func (c *SOAPClient) call(ctx context.Context, endpoint, ns, accessKey string, content interface{}) ([]byte, error) {
	payload, err := xml.Marshal(soapEnvelope{XmlnsS: soapNS, XmlnsEc: ns, Body: soapBody{Content: content}})
	if err != nil {
		return nil, &domain.TransportError{Kind: domain.TransportOther, Endpoint: endpoint, Err: fmt.Errorf("serializar envelope: %w", err)}
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetDoNotParseResponse(true).
		Post(endpoint)
	elapsed := time.Since(start)
	if err != nil {
		terr := &domain.TransportError{Kind: ClassifyTransportError(err), Endpoint: endpoint, Elapsed: elapsed, Err: err}
		c.logFailure(terr, accessKey)
		return nil, terr
	}
	defer resp.RawBody().Close()

	raw, err := io.ReadAll(io.LimitReader(resp.RawBody(), maxResponseSize+1))
	if err != nil {
		terr := &domain.TransportError{Kind: ClassifyTransportError(err), Endpoint: endpoint, Elapsed: time.Since(start), Err: fmt.Errorf("leer respuesta: %w", err)}
		c.logFailure(terr, accessKey)
		return nil, terr
	}
	if len(raw) > maxResponseSize {
		terr := &domain.TransportError{
			Kind:     domain.TransportResponseTooLarge,
			Endpoint: endpoint,
			Elapsed:  time.Since(start),
			Err:      fmt.Errorf("respuesta supera %d bytes", maxResponseSize),
		}
		c.logFailure(terr, accessKey)
		return nil, terr
	}

	if resp.StatusCode() >= 300 && !strings.Contains(string(raw), "Fault>") {
		terr := &domain.TransportError{Kind: domain.TransportHTTPStatus, Endpoint: endpoint, Elapsed: elapsed, Err: fmt.Errorf("HTTP %d", resp.StatusCode())}
		c.logFailure(terr, accessKey)
		return raw, terr
	}

	c.log.Debug().Str("endpoint", endpoint).Dur("elapsed", elapsed).Str("access_key", accessKey).
		Int("status_http", resp.StatusCode()).Msg("respuesta SOAP recibida")
	return raw, nil
}

func (c *SOAPClient) logFailure(terr *domain.TransportError, accessKey string) {
	c.log.Error().Err(terr.Err).
		Str("kind", terr.Kind).
		Str("endpoint", terr.Endpoint).
		Dur("elapsed", terr.Elapsed).
		Str("access_key", accessKey).
		Msg("falla de transporte con el SRI")
}

// ClassifyTransportError clasifica un error de red.
func ClassifyTransportError(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return domain.TransportTimeout
	case errors.As(err, &dnsErr):
		return domain.TransportHostNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		return domain.TransportConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return domain.TransportConnectionReset
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.TransportTimeout
	default:
		return domain.TransportOther
	}
}

// ── Mensajes ───────────────────────────────────────────────────────────────────

func toMessages(in []mensajeXML) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		out = append(out, Message{
			Identifier:     strings.TrimSpace(m.Identificador),
			Text:           strings.TrimSpace(m.Mensaje),
			AdditionalInfo: strings.TrimSpace(m.InformacionAdicional),
			Type:           strings.TrimSpace(m.Tipo),
		})
	}
	return out
}

func faultMessage(f *soapFault) Message {
	return Message{Identifier: strings.TrimSpace(f.FaultCode), Text: strings.TrimSpace(f.FaultString), Type: "FAULT"}
}

// FlattenMessages une los mensajes como "identificador: mensaje (informacionAdicional)" separados por "; ".
func FlattenMessages(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		var b strings.Builder
		if m.Identifier != "" {
			b.WriteString(m.Identifier)
			b.WriteString(": ")
		}
		b.WriteString(m.Text)
		if m.AdditionalInfo != "" {
			b.WriteString(" (")
			b.WriteString(m.AdditionalInfo)
			b.WriteString(")")
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "; ")
}
