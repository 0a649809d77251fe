// Firma XML-DSig enveloped de la factura para el SRI.
// La firma se agrega como último hijo de <factura id="comprobante">.

package signer

import (
	"bytes"
	"crypto/tls"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
)

// DigitalSignatureService firma comprobantes con el PKCS#12 del emisor.
// No guarda llaves ni claves: cada llamada a Sign decodifica el certificado y lo descarta.
type DigitalSignatureService struct {
	canonicalization string
	log              *logger.Logger
}

// NewDigitalSignatureService crea el servicio. canonicalization: "inclusive" (por defecto) o "exclusive".
func NewDigitalSignatureService(canonicalization string, log *logger.Logger) *DigitalSignatureService {
	if canonicalization != C14NExclusive {
		canonicalization = C14NInclusive
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DigitalSignatureService{canonicalization: canonicalization, log: log.Component("signer")}
}

// Sign firma el XML con el PKCS#12 y su clave.
func (s *DigitalSignatureService) Sign(xmlBytes, p12 []byte, password string) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, &domain.SigningError{Reason: "XML vacío"}
	}
	pair, err := LoadFromP12(p12, password)
	if err != nil {
		return nil, err
	}
	return s.SignWithKeyPair(xmlBytes, pair)
}

// SignWithKeyPair firma con una llave ya cargada.
func (s *DigitalSignatureService) SignWithKeyPair(xmlBytes []byte, pair *KeyPair) ([]byte, error) {
	if pair == nil || pair.Key == nil || pair.Leaf == nil {
		return nil, &domain.SigningError{Reason: "llave o certificado ausente"}
	}
	xmlBytes = bytes.TrimPrefix(xmlBytes, utf8BOM)

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, &domain.SigningError{Reason: "XML mal formado", Err: err}
	}
	target := findSignable(doc)
	if target == nil {
		return nil, &domain.SigningError{Reason: "no se encontró el elemento factura"}
	}
	if target.SelectAttrValue(idAttribute, "") != SignedElementID {
		// La Reference necesita un id; se fija el que exige el SRI.
		s.log.Warn().Msg("factura sin id=\"comprobante\", se firma el primer elemento factura")
		target.CreateAttr(idAttribute, SignedElementID)
	}

	ks := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{pair.Leaf.Raw},
		PrivateKey:  pair.Key,
		Leaf:        pair.Leaf,
	})
	ctx := dsig.NewDefaultSigningContext(ks)
	if err := ctx.SetSignatureMethod(dsig.RSASHA1SignatureMethod); err != nil {
		return nil, &domain.SigningError{Reason: "método de firma", Err: err}
	}
	ctx.IdAttribute = idAttribute
	ctx.Prefix = dsPrefix
	if s.canonicalization == C14NExclusive {
		ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	} else {
		ctx.Canonicalizer = dsig.MakeC14N10RecCanonicalizer()
	}

	signed, err := ctx.SignEnveloped(target)
	if err != nil {
		return nil, &domain.SigningError{Reason: "construir firma", Err: err}
	}
	if err := replace(doc, target, signed); err != nil {
		return nil, err
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, &domain.SigningError{Reason: "serializar XML firmado", Err: err}
	}
	out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
	if err := checkPostconditions(out); err != nil {
		return nil, err
	}
	return out, nil
}

// findSignable busca factura[@id='comprobante'] y si no existe el primer factura del documento.
func findSignable(doc *etree.Document) *etree.Element {
	if el := doc.FindElement(fmt.Sprintf("//%s[@%s='%s']", SignedElementTag, idAttribute, SignedElementID)); el != nil {
		return el
	}
	return doc.FindElement("//" + SignedElementTag)
}

// replace pone el elemento firmado en la posición del original.
func replace(doc *etree.Document, original, signed *etree.Element) error {
	parent := original.Parent()
	if parent == nil || parent == &doc.Element {
		doc.SetRoot(signed)
		return nil
	}
	idx := original.Index()
	if idx < 0 {
		return &domain.SigningError{Reason: "no se pudo ubicar el elemento firmado en el documento"}
	}
	parent.RemoveChildAt(idx)
	parent.InsertChildAt(idx, signed)
	return nil
}

func checkPostconditions(out []byte) error {
	if bytes.HasPrefix(out, utf8BOM) {
		return &domain.SigningError{Reason: "el XML firmado contiene BOM"}
	}
	if bytes.Contains(out, []byte("\r")) {
		return &domain.SigningError{Reason: "el XML firmado contiene retornos de carro"}
	}
	for _, tag := range []string{"Signature", "SignedInfo", "SignatureValue", "KeyInfo", "X509Certificate"} {
		if !bytes.Contains(out, []byte("<"+dsPrefix+":"+tag)) {
			return &domain.SigningError{Reason: "falta el nodo " + tag}
		}
	}
	return nil
}
