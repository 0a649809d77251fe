package signer

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/loyverse-sri/internal/domain"
)

// VerifyDigest recalcula el DigestValue de la referencia: quita la Signature de la
// factura, canonicaliza con el algoritmo declarado en los Transforms (c14n 1.0
// inclusivo o exclusivo) y compara el SHA-1 en base64.
// Es un autocontrol del firmado, no valida la cadena del certificado.
func VerifyDigest(signed []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signed); err != nil {
		return &domain.SigningError{Reason: "XML firmado mal formado", Err: err}
	}
	target := findSignable(doc)
	if target == nil {
		return &domain.SigningError{Reason: "no se encontró el elemento factura"}
	}
	sig := target.SelectElement("Signature")
	if sig == nil {
		return &domain.SigningError{Reason: "la factura no tiene Signature"}
	}
	digest := sig.FindElement(".//DigestValue")
	if digest == nil {
		return &domain.SigningError{Reason: "la firma no tiene DigestValue"}
	}
	expected := digest.Text()
	algorithm, err := referenceC14N(sig)
	if err != nil {
		return err
	}

	unsigned := target.Copy()
	for _, child := range unsigned.ChildElements() {
		if child.Tag == "Signature" {
			unsigned.RemoveChild(child)
		}
	}

	canonical, err := canonicalize(unsigned, algorithm)
	if err != nil {
		return &domain.SigningError{Reason: "canonicalizar factura", Err: err}
	}
	sum := sha1.Sum(canonical)
	got := base64.StdEncoding.EncodeToString(sum[:])
	if got != expected {
		return &domain.SigningError{Reason: fmt.Sprintf("digest no coincide: calculado %s, firmado %s", got, expected)}
	}
	return nil
}

// referenceC14N devuelve la canonicalización declarada en los Transforms de la
// referencia. Sin transform explícito aplica c14n 1.0 inclusivo.
func referenceC14N(sig *etree.Element) (string, error) {
	for _, tr := range sig.FindElements(".//Reference/Transforms/Transform") {
		switch alg := tr.SelectAttrValue("Algorithm", ""); alg {
		case TransformEnveloped:
		case AlgC14N, AlgExcC14N:
			return alg, nil
		default:
			return "", &domain.SigningError{Reason: fmt.Sprintf("transform no soportado: %s", alg)}
		}
	}
	return AlgC14N, nil
}

func canonicalize(el *etree.Element, algorithm string) ([]byte, error) {
	if algorithm == AlgExcC14N {
		return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("").Canonicalize(el)
	}
	tmp := etree.NewDocument()
	tmp.SetRoot(el)
	raw, err := tmp.WriteToBytes()
	if err != nil {
		return nil, err
	}
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}
