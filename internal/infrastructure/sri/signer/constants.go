// Algoritmos XML-DSig usados por el SRI (firma enveloped, RSA-SHA1).

package signer

const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgExcC14N         = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgRSASHA1         = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgSHA1            = "http://www.w3.org/2000/09/xmldsig#sha1"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// Modos de canonicalización configurables (SRI_C14N).
const (
	C14NInclusive = "inclusive"
	C14NExclusive = "exclusive"
)

// Elemento firmado y su atributo de referencia.
const (
	SignedElementTag = "factura"
	SignedElementID  = "comprobante"
	idAttribute      = "id"
	dsPrefix         = "ds"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}
