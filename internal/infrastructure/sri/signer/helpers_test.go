package signer_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

const testPassword = "clave-firma-2025"

// testCert genera un certificado autofirmado y su PKCS#12 (3DES, compatible con x/crypto/pkcs12).
func testCert(t *testing.T, notAfter time.Time) (*x509.Certificate, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(20251218),
		Subject: pkix.Name{
			CommonName:   "COMERCIAL ANDINA S.A.",
			Organization: []string{"Pruebas"},
			Country:      []string{"EC"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	p12, err := gopkcs12.LegacyDES.Encode(key, cert, nil, testPassword)
	require.NoError(t, err)
	return cert, p12
}

const facturaXML = `<?xml version="1.0" encoding="UTF-8"?>
<factura id="comprobante" version="1.1.0">
  <infoTributaria>
    <ambiente>1</ambiente>
    <razonSocial>COMERCIAL ANDINA</razonSocial>
    <claveAcceso>1812202501179001167400110010010000000451234567810</claveAcceso>
  </infoTributaria>
  <infoFactura>
    <importeTotal>21.28</importeTotal>
  </infoFactura>
</factura>
`
