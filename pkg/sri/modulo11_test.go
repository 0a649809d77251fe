package sri_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/loyverse-sri/pkg/sri"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vectores calculados a mano con pesos 2,3,4,5,6,7 de izquierda a derecha.
// ──────────────────────────────────────────────────────────────────────────────

func TestCheckDigit_VectoresConocidos(t *testing.T) {
	cases := []struct {
		name string
		base string
		want int
	}{
		{"base rellenada con ceros", "131220250199999999999991001000123450876512341000", 4},
		{"factura bien formada", "131220250117900116740011001001000012345123456781", 3},
		{"residuo 1 da 10 y se mapea a 1", "131220250117900116740011001001000000011123456781", 1},
		{"residuo 0 da 0", "131220250117900116740011001001000000007123456781", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Len(t, tc.base, sri.AccessKeyBaseLength)
			assert.Equal(t, tc.want, sri.CheckDigit(tc.base))
		})
	}
}

func TestCheckDigit_SiempreUnDigito(t *testing.T) {
	for seq := 0; seq < 500; seq++ {
		base := "01012024" + "01" + "0990000000001" + "2" + "001" + "002" +
			leftPad(strconv.Itoa(seq), 9) + "87654321" + "1"
		d := sri.CheckDigit(base)
		assert.GreaterOrEqual(t, d, 0)
		assert.LessOrEqual(t, d, 9)
		assert.Equal(t, d, sri.CheckDigit(base), "debe ser determinista")
	}
}

func TestValidateAccessKey(t *testing.T) {
	base := "131220250117900116740011001001000012345123456781"

	require.NoError(t, sri.ValidateAccessKey(base+"3"))
	assert.Error(t, sri.ValidateAccessKey(base+"4"), "dígito incorrecto")
	assert.Error(t, sri.ValidateAccessKey(base), "longitud 48")
	assert.Error(t, sri.ValidateAccessKey(base[:47]+"X3"), "caracter no numérico")
}

func TestIVARateCode(t *testing.T) {
	assert.Equal(t, "2", sri.IVARateCode(decimal.NewFromInt(12)))
	assert.Equal(t, "4", sri.IVARateCode(decimal.NewFromInt(15)))
	assert.Equal(t, "0", sri.IVARateCode(decimal.Zero))
	assert.Equal(t, "10", sri.IVARateCode(decimal.NewFromInt(13)))
	assert.Equal(t, "2", sri.IVARateCode(decimal.RequireFromString("12.5")), "tarifa no catalogada")
}

func TestBuyerIDType(t *testing.T) {
	assert.Equal(t, sri.IdentificacionRUC, sri.BuyerIDType("1790011674001"))
	assert.Equal(t, sri.IdentificacionCedula, sri.BuyerIDType("1712345678"))
	assert.Equal(t, sri.IdentificacionConsumidorFinal, sri.BuyerIDType(sri.RUCConsumidorFinal))
	assert.Equal(t, sri.IdentificacionPasaporte, sri.BuyerIDType("AB123456"))
}

func TestAmbienteFromName(t *testing.T) {
	assert.Equal(t, sri.AmbienteProduccion, sri.AmbienteFromName("produccion"))
	assert.Equal(t, sri.AmbienteProduccion, sri.AmbienteFromName("2"))
	assert.Equal(t, sri.AmbientePruebas, sri.AmbienteFromName("pruebas"))
	assert.Equal(t, sri.AmbientePruebas, sri.AmbienteFromName(""))
}

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}
