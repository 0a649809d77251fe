package billing

import (
	"context"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
)

// Disparadores de la máquina de estados de la factura.
const (
	triggerSign      = "sign"
	triggerSend      = "send"
	triggerAuthorize = "authorize"
	triggerReject    = "reject"
	triggerFail      = "fail"
	triggerRestart   = "restart"
)

// newInvoiceMachine arma la máquina sobre inv.Status (almacenamiento externo).
// Cada entrada a un estado agrega una línea al historial; el mensaje viaja como
// primer argumento del disparo.
//
//	PENDING --sign--> SIGNED --send--> SENT --authorize--> AUTHORIZED
//	                  SIGNED|SENT --reject--> REJECTED
//	cualquiera --fail--> ERROR --authorize|reject--> (consulta recuperada)
//	SIGNED|SENT|AUTHORIZED|REJECTED|ERROR --restart--> PENDING
func newInvoiceMachine(inv *entity.Invoice, now func() time.Time) *stateless.StateMachine {
	m := stateless.NewStateMachineWithExternalStorage(
		func(_ context.Context) (stateless.State, error) { return inv.Status, nil },
		func(_ context.Context, s stateless.State) error {
			inv.Status = s.(string)
			return nil
		},
		stateless.FiringImmediate,
	)

	record := func(_ context.Context, args ...any) error {
		msg := ""
		if len(args) > 0 {
			msg, _ = args[0].(string)
		}
		inv.AppendHistory(inv.Status, now(), msg)
		return nil
	}

	m.Configure(entity.InvoiceStatusPending).
		OnEntry(record).
		Permit(triggerSign, entity.InvoiceStatusSigned).
		Permit(triggerFail, entity.InvoiceStatusError).
		Ignore(triggerRestart)

	m.Configure(entity.InvoiceStatusSigned).
		OnEntry(record).
		Permit(triggerSend, entity.InvoiceStatusSent).
		Permit(triggerReject, entity.InvoiceStatusRejected).
		Permit(triggerFail, entity.InvoiceStatusError).
		Permit(triggerRestart, entity.InvoiceStatusPending)

	m.Configure(entity.InvoiceStatusSent).
		OnEntry(record).
		Permit(triggerAuthorize, entity.InvoiceStatusAuthorized).
		Permit(triggerReject, entity.InvoiceStatusRejected).
		Permit(triggerFail, entity.InvoiceStatusError).
		Permit(triggerRestart, entity.InvoiceStatusPending)

	m.Configure(entity.InvoiceStatusAuthorized).
		OnEntry(record).
		Permit(triggerFail, entity.InvoiceStatusError).
		Permit(triggerRestart, entity.InvoiceStatusPending)

	m.Configure(entity.InvoiceStatusRejected).
		OnEntry(record).
		Permit(triggerFail, entity.InvoiceStatusError).
		Permit(triggerRestart, entity.InvoiceStatusPending)

	m.Configure(entity.InvoiceStatusError).
		OnEntry(record).
		PermitReentry(triggerFail).
		Permit(triggerAuthorize, entity.InvoiceStatusAuthorized).
		Permit(triggerReject, entity.InvoiceStatusRejected).
		Permit(triggerRestart, entity.InvoiceStatusPending)

	return m
}
