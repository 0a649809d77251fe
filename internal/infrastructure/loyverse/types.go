package loyverse

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
)

// Estructuras del API REST v1.0. Los montos llegan como números JSON.

type receiptsPage struct {
	Receipts []receiptDTO `json:"receipts"`
	Cursor   string       `json:"cursor"`
}

type receiptDTO struct {
	ReceiptNumber string          `json:"receipt_number"`
	ReceiptType   string          `json:"receipt_type"`
	Note          string          `json:"note"`
	CreatedAt     time.Time       `json:"created_at"`
	ReceiptDate   *time.Time      `json:"receipt_date"`
	CancelledAt   *time.Time      `json:"cancelled_at"`
	CustomerID    *string         `json:"customer_id"`
	TotalMoney    decimal.Decimal `json:"total_money"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	Tip           decimal.Decimal `json:"tip"`
	LineItems     []lineItemDTO   `json:"line_items"`
}

type lineItemDTO struct {
	ItemID          string          `json:"item_id"`
	ItemName        string          `json:"item_name"`
	VariantName     *string         `json:"variant_name"`
	SKU             string          `json:"sku"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	GrossTotalMoney decimal.Decimal `json:"gross_total_money"`
	TotalMoney      decimal.Decimal `json:"total_money"`
	TotalDiscount   decimal.Decimal `json:"total_discount"`
	LineTaxes       []lineTaxDTO    `json:"line_taxes"`
}

type lineTaxDTO struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	MoneyAmount decimal.Decimal `json:"money_amount"`
}

type customerDTO struct {
	ID           string  `json:"id"`
	CustomerCode *string `json:"customer_code"`
	Name         string  `json:"name"`
	Email        *string `json:"email"`
	PhoneNumber  *string `json:"phone_number"`
	Address      *string `json:"address"`
	City         *string `json:"city"`
}

type errorBody struct {
	Errors []struct {
		Code    string `json:"code"`
		Details string `json:"details"`
	} `json:"errors"`
}

func (r receiptDTO) toEntity() entity.Receipt {
	created := r.CreatedAt
	if r.ReceiptDate != nil && !r.ReceiptDate.IsZero() {
		created = *r.ReceiptDate
	}
	out := entity.Receipt{
		Number:        r.ReceiptNumber,
		Type:          r.ReceiptType,
		CreatedAt:     created,
		CancelledAt:   r.CancelledAt,
		CustomerID:    str(r.CustomerID),
		Note:          r.Note,
		Total:         r.TotalMoney,
		TotalTax:      r.TotalTax,
		TotalDiscount: r.TotalDiscount,
		Tip:           r.Tip,
		Lines:         make([]entity.ReceiptLine, 0, len(r.LineItems)),
	}
	for _, li := range r.LineItems {
		line := entity.ReceiptLine{
			ItemID:        li.ItemID,
			ItemName:      li.ItemName,
			VariantName:   str(li.VariantName),
			SKU:           li.SKU,
			Quantity:      li.Quantity,
			Price:         li.Price,
			GrossTotal:    li.GrossTotalMoney,
			Total:         li.TotalMoney,
			TotalDiscount: li.TotalDiscount,
		}
		for _, t := range li.LineTaxes {
			line.Taxes = append(line.Taxes, entity.ReceiptLineTax{Type: t.Type, Name: t.Name, Rate: t.Rate, Amount: t.MoneyAmount})
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

func (c customerDTO) toEntity() *entity.Customer {
	addr := str(c.Address)
	if city := str(c.City); city != "" {
		if addr != "" {
			addr += ", "
		}
		addr += city
	}
	return &entity.Customer{
		ID:      c.ID,
		Code:    str(c.CustomerCode),
		Name:    c.Name,
		Email:   str(c.Email),
		Phone:   str(c.PhoneNumber),
		Address: addr,
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
