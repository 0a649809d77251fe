package signer_test

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/infrastructure/sri/signer"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
)

func parse(t *testing.T, data []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	return doc
}

func TestSign_FirmaEnvelopedValida(t *testing.T) {
	cert, p12 := testCert(t, time.Now().Add(365*24*time.Hour))
	svc := signer.NewDigitalSignatureService(signer.C14NInclusive, logger.Nop())

	out, err := svc.Sign([]byte(facturaXML), p12, testPassword)
	require.NoError(t, err)

	doc := parse(t, out)
	root := doc.Root()
	require.Equal(t, "factura", root.Tag)
	children := root.ChildElements()
	sig := children[len(children)-1]
	assert.Equal(t, "Signature", sig.Tag)
	assert.Equal(t, "ds", sig.Space)

	ref := sig.FindElement(".//Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#comprobante", ref.SelectAttrValue("URI", ""))
	assert.Equal(t, signer.AlgC14N, sig.FindElement(".//CanonicalizationMethod").SelectAttrValue("Algorithm", ""))
	assert.Equal(t, signer.AlgRSASHA1, sig.FindElement(".//SignatureMethod").SelectAttrValue("Algorithm", ""))
	assert.Equal(t, signer.AlgSHA1, sig.FindElement(".//DigestMethod").SelectAttrValue("Algorithm", ""))

	var transforms []string
	for _, tr := range sig.FindElements(".//Transforms/Transform") {
		transforms = append(transforms, tr.SelectAttrValue("Algorithm", ""))
	}
	assert.Equal(t, []string{signer.TransformEnveloped, signer.AlgC14N}, transforms)

	x509Text := sig.FindElement(".//KeyInfo/X509Data/X509Certificate").Text()
	assert.Equal(t, base64.StdEncoding.EncodeToString(cert.Raw), x509Text)
	assert.NotContains(t, x509Text, "\n")

	assert.True(t, bytes.HasPrefix(out, []byte("<?xml")))
	assert.NotContains(t, string(out), "\r")
	require.NoError(t, signer.VerifyDigest(out))

	vctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{cert}})
	vctx.IdAttribute = "id"
	_, err = vctx.Validate(parse(t, out).Root())
	assert.NoError(t, err)
}

func TestSign_CanonicalizacionExclusiva(t *testing.T) {
	_, p12 := testCert(t, time.Now().Add(24*time.Hour))
	svc := signer.NewDigitalSignatureService(signer.C14NExclusive, logger.Nop())

	out, err := svc.Sign([]byte(facturaXML), p12, testPassword)
	require.NoError(t, err)

	sig := parse(t, out).FindElement("//Signature")
	assert.Equal(t, signer.AlgExcC14N, sig.FindElement(".//CanonicalizationMethod").SelectAttrValue("Algorithm", ""))
	assert.NoError(t, signer.VerifyDigest(out))
}

func TestVerifyDigest_ExclusivaConNamespaceSinUso(t *testing.T) {
	_, p12 := testCert(t, time.Now().Add(24*time.Hour))
	svc := signer.NewDigitalSignatureService(signer.C14NExclusive, logger.Nop())
	xml := strings.Replace(facturaXML, `<factura id="comprobante"`, `<factura xmlns:ext="urn:ext" id="comprobante"`, 1)

	out, err := svc.Sign([]byte(xml), p12, testPassword)
	require.NoError(t, err)

	assert.Contains(t, string(out), `xmlns:ext="urn:ext"`)
	assert.NoError(t, signer.VerifyDigest(out))
}

func TestVerifyDigest_TransformDesconocido(t *testing.T) {
	_, p12 := testCert(t, time.Now().Add(24*time.Hour))
	svc := signer.NewDigitalSignatureService(signer.C14NInclusive, logger.Nop())
	out, err := svc.Sign([]byte(facturaXML), p12, testPassword)
	require.NoError(t, err)

	alterado := strings.Replace(string(out), signer.AlgC14N, "urn:desconocido", -1)

	err = signer.VerifyDigest([]byte(alterado))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transform no soportado")
}

func TestSign_ClaveIncorrecta(t *testing.T) {
	_, p12 := testCert(t, time.Now().Add(24*time.Hour))
	svc := signer.NewDigitalSignatureService("", nil)

	_, err := svc.Sign([]byte(facturaXML), p12, "otra-clave")

	var certErr *domain.CertificateError
	require.True(t, errors.As(err, &certErr))
	assert.Contains(t, certErr.Reason, "clave")
	assert.NotContains(t, err.Error(), "otra-clave")
}

func TestSign_PKCS12Corrupto(t *testing.T) {
	svc := signer.NewDigitalSignatureService("", nil)

	_, err := svc.Sign([]byte(facturaXML), []byte("no es un p12"), testPassword)

	var certErr *domain.CertificateError
	assert.True(t, errors.As(err, &certErr))
}

func TestSign_XMLMalFormado(t *testing.T) {
	_, p12 := testCert(t, time.Now().Add(24*time.Hour))
	svc := signer.NewDigitalSignatureService("", nil)

	_, err := svc.Sign([]byte("<factura><sin-cerrar>"), p12, testPassword)

	var sigErr *domain.SigningError
	assert.True(t, errors.As(err, &sigErr))
}

func TestSign_FacturaAnidadaConservaContenido(t *testing.T) {
	_, p12 := testCert(t, time.Now().Add(24*time.Hour))
	svc := signer.NewDigitalSignatureService("", nil)
	in := `<lote><cabecera>x</cabecera><factura version="1.1.0"><infoTributaria><ambiente>1</ambiente></infoTributaria></factura><pie>y</pie></lote>`

	out, err := svc.Sign([]byte(in), p12, testPassword)
	require.NoError(t, err)

	root := parse(t, out).Root()
	assert.Equal(t, "lote", root.Tag)
	var tags []string
	for _, c := range root.ChildElements() {
		tags = append(tags, c.Tag)
	}
	assert.Equal(t, []string{"cabecera", "factura", "pie"}, tags)
	factura := root.SelectElement("factura")
	assert.Equal(t, "comprobante", factura.SelectAttrValue("id", ""))
	assert.NotNil(t, factura.SelectElement("Signature"))
	assert.NoError(t, signer.VerifyDigest(out))
}

func TestSign_QuitaBOMYRetornosDeCarro(t *testing.T) {
	_, p12 := testCert(t, time.Now().Add(24*time.Hour))
	svc := signer.NewDigitalSignatureService("", nil)
	in := append([]byte{0xEF, 0xBB, 0xBF}, []byte(strings.ReplaceAll(facturaXML, "\n", "\r\n"))...)

	out, err := svc.Sign(in, p12, testPassword)
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}))
	assert.NotContains(t, string(out), "\r")
	assert.NoError(t, signer.VerifyDigest(out))
}

func TestSign_RefirmarMismoXML(t *testing.T) {
	_, p12 := testCert(t, time.Now().Add(24*time.Hour))
	svc := signer.NewDigitalSignatureService("", nil)

	for i := 0; i < 2; i++ {
		out, err := svc.Sign([]byte(facturaXML), p12, testPassword)
		require.NoError(t, err)
		assert.NoError(t, signer.VerifyDigest(out))
		assert.Len(t, parse(t, out).FindElements("//Signature"), 1)
	}
}

func TestVerifyDigest_DetectaAlteracion(t *testing.T) {
	_, p12 := testCert(t, time.Now().Add(24*time.Hour))
	svc := signer.NewDigitalSignatureService("", nil)
	out, err := svc.Sign([]byte(facturaXML), p12, testPassword)
	require.NoError(t, err)

	tampered := bytes.Replace(out, []byte("21.28"), []byte("99.99"), 1)

	assert.Error(t, signer.VerifyDigest(tampered))
}

func TestLoadFromP12_Describe(t *testing.T) {
	notAfter := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	cert, p12 := testCert(t, notAfter)

	pair, err := signer.LoadFromP12(p12, testPassword)
	require.NoError(t, err)
	assert.True(t, pair.Leaf.Equal(cert))

	info := signer.Describe(pair.Leaf, time.Now())
	assert.Contains(t, info.Subject, "COMERCIAL ANDINA")
	assert.False(t, info.Expired)
	assert.True(t, signer.Describe(pair.Leaf, notAfter.Add(time.Hour)).Expired)
}
