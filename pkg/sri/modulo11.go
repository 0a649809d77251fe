package sri

import (
	"fmt"
)

// Longitudes de la clave de acceso (Ficha Técnica, sección 5.1).
const (
	AccessKeyBaseLength = 48
	AccessKeyLength     = 49
)

// pesos del módulo 11; se repiten cada 6 posiciones empezando en 2.
var modulo11Weights = [6]int{2, 3, 4, 5, 6, 7}

// CheckDigit calcula el dígito verificador módulo 11 de la base de 48 dígitos.
// Los pesos 2..7 se aplican posición a posición de izquierda a derecha.
// Resultado 11 se mapea a 0 y resultado 10 a 1.
// Caracteres no numéricos se ignoran en la suma.
func CheckDigit(base string) int {
	sum := 0
	for i := 0; i < len(base); i++ {
		c := base[i]
		if c < '0' || c > '9' {
			continue
		}
		sum += int(c-'0') * modulo11Weights[i%len(modulo11Weights)]
	}
	remainder := sum % 11
	if remainder == 0 {
		return 0
	}
	result := 11 - remainder
	switch result {
	case 11:
		return 0
	case 10:
		return 1
	}
	return result
}

// ValidateAccessKey comprueba longitud, contenido numérico y dígito verificador.
func ValidateAccessKey(key string) error {
	if len(key) != AccessKeyLength {
		return fmt.Errorf("sri: la clave de acceso debe tener %d dígitos, tiene %d", AccessKeyLength, len(key))
	}
	if OnlyDigits(key) != key {
		return fmt.Errorf("sri: la clave de acceso solo admite dígitos")
	}
	expected := CheckDigit(key[:AccessKeyBaseLength])
	got := int(key[AccessKeyBaseLength] - '0')
	if expected != got {
		return fmt.Errorf("sri: dígito verificador inválido: esperado %d, recibido %d", expected, got)
	}
	return nil
}
