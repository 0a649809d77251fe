package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
)

// InvoiceListQuery filtros de GET /api/invoices.
type InvoiceListQuery struct {
	Limit       int    `query:"limit"`
	Offset      int    `query:"offset"`
	Environment string `query:"environment"`
	Status      string `query:"status"`
	BuyerTaxID  string `query:"buyer_tax_id"`
	From        string `query:"from"` // YYYY-MM-DD
	To          string `query:"to"`   // YYYY-MM-DD, inclusive
}

// InvoiceSummary fila del listado.
type InvoiceSummary struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	LoyverseID  string          `json:"loyverse_id,omitempty"`
	Environment string          `json:"environment"`
	IssueDate   string          `json:"issue_date"`
	BuyerTaxID  string          `json:"buyer_tax_id"`
	BuyerName   string          `json:"buyer_name"`
	Total       decimal.Decimal `json:"total"`
	Status      string          `json:"status"`
	AccessKey   string          `json:"access_key,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// InvoiceListResponse respuesta de GET /api/invoices.
type InvoiceListResponse struct {
	Items []InvoiceSummary `json:"items"`
	Page  PageResponse     `json:"page"`
}

// InvoiceResponse detalle de la factura con historial. No incluye el XML; se
// descarga aparte en /xml.
type InvoiceResponse struct {
	InvoiceSummary
	IssuerRUC           string                   `json:"issuer_ruc"`
	IssuerName          string                   `json:"issuer_name"`
	BuyerIDType         string                   `json:"buyer_id_type"`
	Buyer               entity.Buyer             `json:"buyer"`
	Lines               []entity.InvoiceLine     `json:"lines"`
	Subtotal            decimal.Decimal          `json:"subtotal"`
	TotalDiscount       decimal.Decimal          `json:"total_discount"`
	TaxTotals           []entity.TaxTotal        `json:"tax_totals"`
	Tip                 decimal.Decimal          `json:"tip"`
	AdditionalInfo      []entity.AdditionalField `json:"additional_info,omitempty"`
	AuthorizationNumber string                   `json:"authorization_number,omitempty"`
	AuthorizationDate   *time.Time               `json:"authorization_date,omitempty"`
	HasXML              bool                     `json:"has_xml"`
	History             []entity.StatusEntry     `json:"history"`
}

// ProcessResponse resultado de una acción manual sobre la factura. Incluye los
// XML de la ejecución: si el SRI rechaza, no quedan guardados en otro lugar.
type ProcessResponse struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	Status      string           `json:"status,omitempty"`
	Invoice     *InvoiceResponse `json:"invoice,omitempty"`
	SignedXML   string           `json:"signed_xml,omitempty"`
	UnsignedXML string           `json:"unsigned_xml,omitempty"`
}

// NewInvoiceSummary arma la fila del listado.
func NewInvoiceSummary(inv *entity.Invoice) InvoiceSummary {
	return InvoiceSummary{
		ID:          inv.ID,
		Number:      inv.Number(),
		LoyverseID:  inv.LoyverseID,
		Environment: inv.Environment,
		IssueDate:   inv.IssueDate,
		BuyerTaxID:  inv.Buyer.TaxID,
		BuyerName:   inv.Buyer.Name,
		Total:       inv.Total,
		Status:      inv.Status,
		AccessKey:   inv.AccessKey,
		LastError:   inv.LastError,
		CreatedAt:   inv.CreatedAt,
	}
}

// NewInvoiceResponse arma el detalle.
func NewInvoiceResponse(inv *entity.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		InvoiceSummary:      NewInvoiceSummary(inv),
		IssuerRUC:           inv.IssuerRUC,
		IssuerName:          inv.IssuerName,
		BuyerIDType:         inv.BuyerIDType,
		Buyer:               inv.Buyer,
		Lines:               inv.Lines,
		Subtotal:            inv.Subtotal,
		TotalDiscount:       inv.TotalDiscount,
		TaxTotals:           inv.TaxTotals,
		Tip:                 inv.Tip,
		AdditionalInfo:      inv.AdditionalInfo,
		AuthorizationNumber: inv.AuthorizationNumber,
		AuthorizationDate:   inv.AuthorizationDate,
		HasXML:              inv.SignedXML != "",
		History:             inv.History,
	}
}
