package postgres

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/pkg/config"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
)

// recordingQuerier guarda las sentencias ejecutadas sin base de datos.
type recordingQuerier struct {
	sql  []string
	args [][]any
	rows int // COUNT(*) del historial
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.sql = append(q.sql, sql)
	q.args = append(q.args, args)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (q *recordingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("no soportado")
}

func (q *recordingQuerier) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return countRow(q.rows)
}

type countRow int

func (r countRow) Scan(dest ...any) error {
	*dest[0].(*int) = int(r)
	return nil
}

var spaces = regexp.MustCompile(`\s+`)

func facturaDePrueba(status string) *entity.Invoice {
	now := time.Now().UTC().Truncate(time.Second)
	inv := &entity.Invoice{
		ID:                 uuid.New().String(),
		Environment:        "1",
		EmissionType:       "1",
		IssuerName:         "COMERCIAL ANDINA",
		IssuerRUC:          "1790011674001",
		DocType:            "01",
		Establishment:      "001",
		EmissionPoint:      "001",
		Sequential:         "000000045",
		MatrixAddress:      "Av. Amazonas",
		IssueDate:          "18/12/2025",
		AccountingRequired: "NO",
		BuyerIDType:        "05",
		Buyer:              entity.Buyer{TaxID: "1712345678", Name: "JUAN PEREZ"},
		Subtotal:           decimal.RequireFromString("10.00"),
		Total:              decimal.RequireFromString("11.50"),
		Currency:           "DOLAR",
		Status:             status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	inv.AppendHistory(status, now, "creada")
	return inv
}

func TestUpdate_XMLVacioNoPisaElGuardado(t *testing.T) {
	q := &recordingQuerier{rows: 1}
	repo := NewInvoiceRepository(q, nil)
	inv := facturaDePrueba(entity.InvoiceStatusRejected)

	require.NoError(t, repo.Update(context.Background(), inv))

	require.Len(t, q.sql, 1, "sin entradas nuevas de historial")
	sql := spaces.ReplaceAllString(q.sql[0], " ")
	assert.Contains(t, sql, "unsigned_xml = COALESCE($3, unsigned_xml)")
	assert.Contains(t, sql, "signed_xml = COALESCE($4, signed_xml)")
	assert.Contains(t, sql, "access_key = COALESCE($2, access_key)")
	assert.Nil(t, q.args[0][2], "unsigned_xml")
	assert.Nil(t, q.args[0][3], "signed_xml")
	assert.Equal(t, entity.InvoiceStatusRejected, q.args[0][7])
}

func TestUpdate_AgregaSoloHistorialNuevo(t *testing.T) {
	q := &recordingQuerier{rows: 1}
	repo := NewInvoiceRepository(q, nil)
	inv := facturaDePrueba(entity.InvoiceStatusPending)
	inv.SignedXML = "<factura/>"
	inv.AppendHistory(entity.InvoiceStatusSigned, time.Now(), "comprobante firmado")

	require.NoError(t, repo.Update(context.Background(), inv))

	require.Len(t, q.sql, 2)
	assert.Equal(t, "<factura/>", *(q.args[0][3].(*string)))
	assert.True(t, strings.Contains(q.sql[1], "INSERT INTO invoice_status_history"))
	assert.Equal(t, 1, q.args[1][2], "seq continúa el historial guardado")
	assert.Equal(t, entity.InvoiceStatusSigned, q.args[1][3])
}

// Contra Postgres real; requiere TEST_DATABASE_URL.
func TestUpdate_RechazoConservaXMLAutorizado_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, config.DBConfig{DatabaseURL: url}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	repo := NewInvoiceRepository(pool, NewTxRunner(pool))

	inv := facturaDePrueba(entity.InvoiceStatusAuthorized)
	inv.SignedXML = `<factura id="comprobante"><ds:Signature/></factura>`
	inv.UnsignedXML = `<factura id="comprobante"/>`
	require.NoError(t, repo.Create(ctx, inv))
	t.Cleanup(func() { _, _ = pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, inv.ID) })

	inv.SignedXML, inv.UnsignedXML = "", ""
	inv.LastError = "comprobante devuelto"
	inv.AppendHistory(entity.InvoiceStatusRejected, time.Now(), "comprobante devuelto")
	require.NoError(t, repo.Update(ctx, inv))

	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusRejected, got.Status)
	assert.Equal(t, `<factura id="comprobante"><ds:Signature/></factura>`, got.SignedXML)
	assert.Equal(t, `<factura id="comprobante"/>`, got.UnsignedXML)
	assert.Len(t, got.History, 2)
}
