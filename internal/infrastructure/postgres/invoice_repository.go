package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q  Querier
	tx *TxRunner // si no es nil, Update corre en su propia transacción
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
// Con tx != nil la actualización y el historial se escriben en una sola transacción.
func NewInvoiceRepository(q Querier, tx *TxRunner) *InvoiceRepo {
	return &InvoiceRepo{q: q, tx: tx}
}

const invoiceColumns = `
	id, loyverse_id, environment, emission_type, issuer_name, trade_name, issuer_ruc,
	doc_type, establishment, emission_point, sequential, matrix_address,
	issue_date, establishment_address, special_taxpayer, accounting_required,
	buyer_id_type, buyer, lines, subtotal, total_discount, tax_totals, tip, total,
	currency, additional_info, access_key, unsigned_xml, signed_xml, sri_response,
	authorization_number, authorization_date, status, last_error, created_at, updated_at`

// Create persiste la factura y su historial inicial.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	buyer, lines, taxes, info, err := marshalJSONColumns(inv)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO invoices (` + invoiceColumns + `, buyer_tax_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37)`
	insert := func(q Querier) error {
		_, err := q.Exec(ctx, query,
			inv.ID, nullIfEmpty(inv.LoyverseID), inv.Environment, inv.EmissionType, inv.IssuerName, inv.TradeName, inv.IssuerRUC,
			inv.DocType, inv.Establishment, inv.EmissionPoint, inv.Sequential, inv.MatrixAddress,
			inv.IssueDate, inv.EstablishmentAddress, inv.SpecialTaxpayer, inv.AccountingRequired,
			inv.BuyerIDType, buyer, lines, inv.Subtotal, inv.TotalDiscount, taxes, inv.Tip, inv.Total,
			inv.Currency, info, nullIfEmpty(inv.AccessKey), nullIfEmpty(inv.UnsignedXML), nullIfEmpty(inv.SignedXML), nullIfEmpty(inv.SRIResponse),
			nullIfEmpty(inv.AuthorizationNumber), inv.AuthorizationDate, inv.Status, inv.LastError, inv.CreatedAt, inv.UpdatedAt,
			inv.Buyer.TaxID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: factura ya registrada para el recibo %s", domain.ErrDuplicate, inv.LoyverseID)
			}
			return fmt.Errorf("insert invoice: %w", err)
		}
		return appendHistory(ctx, q, inv.ID, 0, inv.History)
	}
	if r.tx == nil {
		return insert(r.q)
	}
	return r.tx.Run(ctx, insert)
}

// Update persiste estado, clave, respuesta del SRI y XML. Las columnas de XML nunca se
// borran: un valor vacío conserva lo ya guardado. Las entradas nuevas del historial se agregan.
func (r *InvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	if r.tx == nil {
		return r.update(ctx, r.q, inv)
	}
	return r.tx.Run(ctx, func(q Querier) error { return r.update(ctx, q, inv) })
}

func (r *InvoiceRepo) update(ctx context.Context, q Querier, inv *entity.Invoice) error {
	buyer, lines, taxes, info, err := marshalJSONColumns(inv)
	if err != nil {
		return err
	}
	query := `
		UPDATE invoices
		SET access_key           = COALESCE($2, access_key),
		    unsigned_xml         = COALESCE($3, unsigned_xml),
		    signed_xml           = COALESCE($4, signed_xml),
		    sri_response         = COALESCE($5, sri_response),
		    authorization_number = COALESCE($6, authorization_number),
		    authorization_date   = COALESCE($7, authorization_date),
		    status               = $8,
		    last_error           = $9,
		    buyer                = $10,
		    buyer_tax_id         = $11,
		    lines                = $12,
		    subtotal             = $13,
		    total_discount       = $14,
		    tax_totals           = $15,
		    tip                  = $16,
		    total                = $17,
		    additional_info      = $18,
		    updated_at           = $19
		WHERE id = $1`
	tag, err := q.Exec(ctx, query,
		inv.ID,
		nullIfEmpty(inv.AccessKey),
		nullIfEmpty(inv.UnsignedXML),
		nullIfEmpty(inv.SignedXML),
		nullIfEmpty(inv.SRIResponse),
		nullIfEmpty(inv.AuthorizationNumber),
		inv.AuthorizationDate,
		inv.Status,
		inv.LastError,
		buyer, inv.Buyer.TaxID, lines, inv.Subtotal, inv.TotalDiscount, taxes, inv.Tip, inv.Total, info,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update invoice %s: %w", inv.ID, domain.ErrNotFound)
	}

	var stored int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM invoice_status_history WHERE invoice_id = $1`, inv.ID).Scan(&stored); err != nil {
		return fmt.Errorf("count history: %w", err)
	}
	if stored >= len(inv.History) {
		return nil
	}
	return appendHistory(ctx, q, inv.ID, stored, inv.History[stored:])
}

func appendHistory(ctx context.Context, q Querier, invoiceID string, fromSeq int, entries []entity.StatusEntry) error {
	for i, e := range entries {
		_, err := q.Exec(ctx, `
			INSERT INTO invoice_status_history (id, invoice_id, seq, status, message, at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), invoiceID, fromSeq+i, e.Status, e.Message, e.At)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}

// GetByID obtiene una factura completa con su historial.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

// GetByLoyverseID busca la factura generada desde un recibo.
func (r *InvoiceRepo) GetByLoyverseID(ctx context.Context, loyverseID string) (*entity.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE loyverse_id = $1`, loyverseID)
}

func (r *InvoiceRepo) getOne(ctx context.Context, query string, arg string) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	history, err := r.history(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.History = history
	return inv, nil
}

func (r *InvoiceRepo) history(ctx context.Context, invoiceID string) ([]entity.StatusEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT status, message, at FROM invoice_status_history
		WHERE invoice_id = $1 ORDER BY seq`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	var list []entity.StatusEntry
	for rows.Next() {
		var e entity.StatusEntry
		if err := rows.Scan(&e.Status, &e.Message, &e.At); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// List devuelve facturas (más recientes primero) sin historial, y el total filtrado.
func (r *InvoiceRepo) List(ctx context.Context, filter repository.InvoiceFilter, page repository.Page) ([]*entity.Invoice, int, error) {
	where, args := buildInvoiceFilter(filter)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	limit, offset := normalizePage(page)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM invoices%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, len(args)-1, len(args))
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, total, rows.Err()
}

// buildInvoiceFilter arma el WHERE con placeholders posicionales.
func buildInvoiceFilter(f repository.InvoiceFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Environment != "" {
		add("environment = $%d", f.Environment)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.BuyerTaxID != "" {
		add("buyer_tax_id = $%d", f.BuyerTaxID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func normalizePage(p repository.Page) (limit, offset int) {
	limit, offset = p.Limit, p.Offset
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var loyverseID, accessKey, unsignedXML, signedXML, sriResponse, authNumber *string
	var authDate *time.Time
	var buyer, lines, taxes, info []byte
	err := row.Scan(
		&inv.ID, &loyverseID, &inv.Environment, &inv.EmissionType, &inv.IssuerName, &inv.TradeName, &inv.IssuerRUC,
		&inv.DocType, &inv.Establishment, &inv.EmissionPoint, &inv.Sequential, &inv.MatrixAddress,
		&inv.IssueDate, &inv.EstablishmentAddress, &inv.SpecialTaxpayer, &inv.AccountingRequired,
		&inv.BuyerIDType, &buyer, &lines, &inv.Subtotal, &inv.TotalDiscount, &taxes, &inv.Tip, &inv.Total,
		&inv.Currency, &info, &accessKey, &unsignedXML, &signedXML, &sriResponse,
		&authNumber, &authDate, &inv.Status, &inv.LastError, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.LoyverseID = derefStr(loyverseID)
	inv.AccessKey = strings.TrimSpace(derefStr(accessKey))
	inv.UnsignedXML = derefStr(unsignedXML)
	inv.SignedXML = derefStr(signedXML)
	inv.SRIResponse = derefStr(sriResponse)
	inv.AuthorizationNumber = derefStr(authNumber)
	inv.AuthorizationDate = authDate

	if err := unmarshalJSONColumns(&inv, buyer, lines, taxes, info); err != nil {
		return nil, err
	}
	return &inv, nil
}

func marshalJSONColumns(inv *entity.Invoice) (buyer, lines, taxes, info []byte, err error) {
	if buyer, err = json.Marshal(inv.Buyer); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal buyer: %w", err)
	}
	if lines, err = json.Marshal(nonNil(inv.Lines)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal lines: %w", err)
	}
	if taxes, err = json.Marshal(nonNil(inv.TaxTotals)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal tax totals: %w", err)
	}
	if info, err = json.Marshal(nonNil(inv.AdditionalInfo)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal additional info: %w", err)
	}
	return buyer, lines, taxes, info, nil
}

func unmarshalJSONColumns(inv *entity.Invoice, buyer, lines, taxes, info []byte) error {
	if err := json.Unmarshal(buyer, &inv.Buyer); err != nil {
		return fmt.Errorf("unmarshal buyer: %w", err)
	}
	if err := json.Unmarshal(lines, &inv.Lines); err != nil {
		return fmt.Errorf("unmarshal lines: %w", err)
	}
	if err := json.Unmarshal(taxes, &inv.TaxTotals); err != nil {
		return fmt.Errorf("unmarshal tax totals: %w", err)
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &inv.AdditionalInfo); err != nil {
			return fmt.Errorf("unmarshal additional info: %w", err)
		}
	}
	return nil
}

// nonNil evita guardar null en columnas JSONB NOT NULL.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
