package billing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/qmuntal/stateless"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
	infrasri "github.com/jhoicas/loyverse-sri/internal/infrastructure/sri"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
)

// Acciones manuales sobre una factura.
const (
	ActionSign      = "sign"      // regenerar y firmar
	ActionSend      = "send"      // firmar y enviar a recepción
	ActionAuthorize = "authorize" // solo consultar autorización
	ActionFull      = "full"      // ciclo completo
)

// DefaultSettleDelay espera entre la recepción y la primera consulta de autorización.
const DefaultSettleDelay = 3 * time.Second

// ResultData datos devueltos por el flujo.
type ResultData struct {
	Invoice     *entity.Invoice
	UnsignedXML string
	SignedXML   string
	Status      string
}

// Result resultado de una acción del flujo. Nunca se devuelve un error: toda falla
// queda como transición a ERROR más una entrada en el historial.
type Result struct {
	Success bool
	Message string
	Data    ResultData
}

// ── Resultados de cada paso ───────────────────────────────────────────────────

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeRejected
	outcomeFailed
	outcomePending // autorización aún en procesamiento
)

type stepOutcome struct {
	kind    outcomeKind
	message string
	err     error
}

func ok(msg string) stepOutcome       { return stepOutcome{kind: outcomeOK, message: msg} }
func rejected(msg string) stepOutcome { return stepOutcome{kind: outcomeRejected, message: msg} }
func pending(msg string) stepOutcome  { return stepOutcome{kind: outcomePending, message: msg} }
func failed(err error) stepOutcome {
	if err == nil {
		err = errors.New("falla sin detalle")
	}
	return stepOutcome{kind: outcomeFailed, message: err.Error(), err: err}
}

// run estado de una ejecución sobre una factura.
type run struct {
	inv      *entity.Invoice
	cfg      *entity.IssuerConfig
	machine  *stateless.StateMachine
	unsigned []byte
	signed   []byte
	log      *logger.Logger

	// primera falla al guardar; el resultado no puede informar éxito.
	persistErr error
}

// ── Workflow ──────────────────────────────────────────────────────────────────

// Workflow orquesta el ciclo de la factura frente al SRI:
//
//	XML → Firma → Recepción → espera → Autorización → Update DB
//
// El XML solo se persiste cuando la factura queda AUTHORIZED. Las ejecuciones
// sobre una misma factura se serializan.
type Workflow struct {
	invoices repository.InvoiceRepository
	configs  repository.ConfigRepository
	builder  XMLBuilder
	signer   Signer
	gateway  Gateway
	clock    clockwork.Clock
	settle   time.Duration
	locks    *keyedMutex
	log      *logger.Logger
}

// NewWorkflow construye el flujo. settle 0 omite la espera entre recepción y
// autorización; clock nil usa el reloj real.
func NewWorkflow(
	invoices repository.InvoiceRepository,
	configs repository.ConfigRepository,
	builder XMLBuilder,
	signer Signer,
	gateway Gateway,
	clock clockwork.Clock,
	settle time.Duration,
	log *logger.Logger,
) *Workflow {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Workflow{
		invoices: invoices,
		configs:  configs,
		builder:  builder,
		signer:   signer,
		gateway:  gateway,
		clock:    clock,
		settle:   settle,
		locks:    newKeyedMutex(),
		log:      log.Component("workflow"),
	}
}

// Sign regenera el XML y lo firma.
func (w *Workflow) Sign(ctx context.Context, invoiceID string) Result {
	return w.Execute(ctx, invoiceID, ActionSign)
}

// Send firma y envía a recepción.
func (w *Workflow) Send(ctx context.Context, invoiceID string) Result {
	return w.Execute(ctx, invoiceID, ActionSend)
}

// Authorize solo consulta la autorización de una factura ya enviada.
func (w *Workflow) Authorize(ctx context.Context, invoiceID string) Result {
	return w.Execute(ctx, invoiceID, ActionAuthorize)
}

// Process ejecuta el ciclo completo.
func (w *Workflow) Process(ctx context.Context, invoiceID string) Result {
	return w.Execute(ctx, invoiceID, ActionFull)
}

// Retry reinicia desde la firma. La clave de acceso se conserva.
func (w *Workflow) Retry(ctx context.Context, invoiceID string) Result {
	return w.Execute(ctx, invoiceID, ActionFull)
}

// Execute ejecuta la acción indicada sobre la factura.
func (w *Workflow) Execute(ctx context.Context, invoiceID, action string) Result {
	switch action {
	case ActionSign, ActionSend, ActionAuthorize, ActionFull:
	default:
		return Result{Message: fmt.Sprintf("acción desconocida %q (usar sign|send|authorize|full)", action)}
	}

	unlock := w.locks.Lock(invoiceID)
	defer unlock()

	r, err := w.begin(ctx, invoiceID)
	if err != nil {
		return Result{Message: err.Error()}
	}
	r.log.Info().Str("action", action).Str("status", r.inv.Status).Msg("inicio")

	if action == ActionAuthorize {
		return w.authorizeOnly(ctx, r)
	}
	if r.inv.Status == entity.InvoiceStatusAuthorized {
		return w.result(r, false, "la factura ya está autorizada")
	}

	if r.inv.Status != entity.InvoiceStatusPending {
		r.inv.LastError = ""
		if err := r.fire(ctx, triggerRestart, "reinicio desde "+r.inv.Status); err != nil {
			return w.result(r, false, err.Error())
		}
	}

	if !w.step(ctx, r, w.sign(r), triggerSign) {
		return w.finish(r)
	}
	if action == ActionSign {
		return w.finish(r)
	}
	if !w.step(ctx, r, w.send(ctx, r), triggerSend) {
		return w.finish(r)
	}
	if action == ActionSend {
		return w.finish(r)
	}

	if err := w.wait(ctx); err != nil {
		w.step(ctx, r, failed(fmt.Errorf("espera de autorización cancelada: %w", err)), "")
		return w.finish(r)
	}
	w.step(ctx, r, w.authorize(ctx, r), triggerAuthorize)
	return w.finish(r)
}

// authorizeOnly consulta la autorización sin regenerar ni reenviar.
func (w *Workflow) authorizeOnly(ctx context.Context, r *run) Result {
	switch r.inv.Status {
	case entity.InvoiceStatusAuthorized:
		return w.result(r, true, "la factura ya está autorizada")
	case entity.InvoiceStatusSent, entity.InvoiceStatusError:
	default:
		return w.result(r, false, fmt.Sprintf("no se puede consultar la autorización en estado %s", r.inv.Status))
	}
	if r.inv.AccessKey == "" {
		return w.result(r, false, "la factura no tiene clave de acceso")
	}
	w.step(ctx, r, w.authorize(ctx, r), triggerAuthorize)
	return w.finish(r)
}

func (w *Workflow) begin(ctx context.Context, invoiceID string) (*run, error) {
	inv, err := w.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("obtener factura %s: %w", invoiceID, err)
	}
	cfg, err := w.configs.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtener configuración del emisor: %w", err)
	}
	return &run{
		inv:     inv,
		cfg:     cfg,
		machine: newInvoiceMachine(inv, w.clock.Now),
		log:     w.log.WithInvoice(inv.ID, inv.AccessKey),
	}, nil
}

// ── Pasos ─────────────────────────────────────────────────────────────────────

func (w *Workflow) sign(r *run) stepOutcome {
	if !r.cfg.HasCertificate() {
		return failed(&domain.CertificateError{Reason: "el emisor no tiene certificado configurado"})
	}
	unsigned, err := w.builder.Build(r.inv)
	if err != nil {
		return failed(fmt.Errorf("generar XML: %w", err))
	}

	p12, err := base64.StdEncoding.DecodeString(r.cfg.CertificateB64)
	if err != nil {
		return failed(&domain.CertificateError{Reason: "el certificado no es base64 válido", Err: err})
	}
	signed, err := w.signer.Sign(unsigned, p12, r.cfg.CertificatePassword)
	clear(p12)
	if err != nil {
		return failed(err)
	}

	r.unsigned, r.signed = unsigned, signed
	r.log = w.log.WithInvoice(r.inv.ID, r.inv.AccessKey)
	return ok("comprobante firmado")
}

func (w *Workflow) send(ctx context.Context, r *run) stepOutcome {
	res := w.gateway.Submit(ctx, r.inv.Environment, r.inv.AccessKey, r.signed)
	if res.Raw != "" {
		r.inv.SRIResponse = res.Raw
	}
	msg := infrasri.FlattenMessages(res.Messages)

	switch res.Status {
	case infrasri.ReceptionReceived:
		r.inv.LastError = msg
		return ok(orDefault(msg, "comprobante recibido"))
	case infrasri.ReceptionRejected:
		return rejected(orDefault(msg, "comprobante devuelto"))
	case infrasri.ReceptionError:
		return failed(res.Err)
	default:
		return failed(fmt.Errorf("respuesta de recepción desconocida: %s", orDefault(msg, "sin estado")))
	}
}

func (w *Workflow) wait(ctx context.Context) error {
	if w.settle <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.clock.After(w.settle):
		return nil
	}
}

func (w *Workflow) authorize(ctx context.Context, r *run) stepOutcome {
	res := w.gateway.CheckAuthorization(ctx, r.inv.Environment, r.inv.AccessKey)
	if res.Raw != "" {
		r.inv.SRIResponse = res.Raw
	}
	msg := infrasri.FlattenMessages(res.Messages)

	switch res.Status {
	case infrasri.AuthorizationAuthorized:
		at := w.clock.Now()
		if res.Date != nil {
			at = *res.Date
		}
		r.inv.AuthorizationNumber = orDefault(res.Number, r.inv.AccessKey)
		r.inv.AuthorizationDate = &at
		if len(r.signed) == 0 {
			r.signed = []byte(res.Comprobante)
		}
		r.inv.SignedXML = string(r.signed)
		r.inv.UnsignedXML = string(r.unsigned)
		r.inv.LastError = ""
		return ok("autorizada " + r.inv.AuthorizationNumber)
	case infrasri.AuthorizationRejected:
		return rejected(orDefault(msg, "comprobante no autorizado"))
	case infrasri.AuthorizationError:
		return failed(res.Err)
	default:
		return pending(orDefault(msg, "comprobante en procesamiento"))
	}
}

// ── Transiciones y persistencia ───────────────────────────────────────────────

// step aplica el resultado de un paso: dispara la transición, registra el
// historial y persiste. Devuelve true si el flujo puede continuar.
func (w *Workflow) step(ctx context.Context, r *run, o stepOutcome, okTrigger string) bool {
	var fireErr error
	switch o.kind {
	case outcomeOK:
		fireErr = r.fire(ctx, okTrigger, o.message)
	case outcomeRejected:
		r.inv.LastError = o.message
		fireErr = r.fire(ctx, triggerReject, o.message)
	case outcomePending:
		r.inv.AppendHistory(r.inv.Status, w.clock.Now(), o.message)
	case outcomeFailed:
		r.inv.LastError = o.message
		fireErr = r.fire(ctx, triggerFail, o.message)
	}
	if fireErr != nil {
		r.log.Error().Err(fireErr).Msg("transición no permitida")
		r.inv.LastError = fireErr.Error()
		return false
	}

	ev := r.log.Info()
	if o.kind == outcomeFailed {
		ev = r.log.Error().Err(o.err)
		var terr *domain.TransportError
		if errors.As(o.err, &terr) {
			ev = ev.Str("transport", terr.Kind).Str("endpoint", terr.Endpoint).Dur("elapsed", terr.Elapsed)
		}
	}
	ev.Str("status", r.inv.Status).Str("detail", o.message).Msg("paso")

	// La persistencia de una falla no depende de la cancelación del llamador.
	if err := w.invoices.Update(context.WithoutCancel(ctx), r.inv); err != nil {
		r.log.Error().Err(err).Str("status", r.inv.Status).Msg("no se pudo persistir el estado")
		if r.persistErr == nil {
			r.persistErr = err
		}
		if o.kind == outcomeOK {
			r.inv.LastError = "no se pudo persistir el estado: " + err.Error()
			return false
		}
	}
	return o.kind == outcomeOK
}

func (r *run) fire(ctx context.Context, trigger, message string) error {
	if err := r.machine.FireCtx(ctx, trigger, message); err != nil {
		return fmt.Errorf("%w: %s desde %s", domain.ErrConflict, trigger, r.inv.Status)
	}
	return nil
}

func (w *Workflow) finish(r *run) Result {
	if r.persistErr != nil {
		msg := fmt.Sprintf("no se pudo persistir el estado %s: %v", r.inv.Status, r.persistErr)
		return w.result(r, false, msg)
	}
	switch r.inv.Status {
	case entity.InvoiceStatusAuthorized:
		return w.result(r, true, "factura autorizada")
	case entity.InvoiceStatusSigned:
		return w.result(r, true, "factura firmada")
	case entity.InvoiceStatusSent:
		if r.inv.LastError != "" {
			return w.result(r, true, "factura enviada: "+r.inv.LastError)
		}
		return w.result(r, true, "factura enviada, pendiente de autorización")
	default:
		return w.result(r, false, orDefault(r.inv.LastError, "la factura quedó en estado "+r.inv.Status))
	}
}

func (w *Workflow) result(r *run, success bool, message string) Result {
	signed := string(r.signed)
	if signed == "" {
		signed = r.inv.SignedXML
	}
	unsigned := string(r.unsigned)
	if unsigned == "" {
		unsigned = r.inv.UnsignedXML
	}
	r.log.Info().Bool("success", success).Str("status", r.inv.Status).Msg(message)
	return Result{
		Success: success,
		Message: message,
		Data: ResultData{
			Invoice:     r.inv,
			UnsignedXML: unsigned,
			SignedXML:   signed,
			Status:      r.inv.Status,
		},
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
