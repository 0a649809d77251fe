package entity

// Customer cliente registrado en el POS. Code es el RUC o cédula que se
// usa como identificación del comprador en la factura.
type Customer struct {
	ID      string
	Code    string
	Name    string
	Email   string
	Phone   string
	Address string
}
