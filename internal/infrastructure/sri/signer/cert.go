// Carga de certificado y llave desde PKCS#12 (.p12) del SRI.

package signer

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/jhoicas/loyverse-sri/internal/domain"
)

// KeyPair llave privada RSA y certificado hoja que la acompaña.
type KeyPair struct {
	Key  *rsa.PrivateKey
	Leaf *x509.Certificate
}

// LoadFromP12 decodifica el PKCS#12 y devuelve la llave RSA y el certificado cuya
// llave pública coincide. Los errores son siempre *domain.CertificateError.
func LoadFromP12(data []byte, password string) (*KeyPair, error) {
	if len(data) == 0 {
		return nil, &domain.CertificateError{Reason: "archivo PKCS#12 vacío"}
	}
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, &domain.CertificateError{Reason: "clave del certificado incorrecta", Err: err}
		}
		return nil, &domain.CertificateError{Reason: "PKCS#12 inválido", Err: err}
	}

	var key *rsa.PrivateKey
	var certs []*x509.Certificate
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY", "RSA PRIVATE KEY":
			if key != nil {
				continue
			}
			key, err = parseRSAKey(b)
			wipe(b)
			if err != nil {
				return nil, &domain.CertificateError{Reason: "llave privada no soportada", Err: err}
			}
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, &domain.CertificateError{Reason: "certificado X.509 inválido", Err: err}
			}
			certs = append(certs, c)
		}
	}
	if key == nil {
		return nil, &domain.CertificateError{Reason: "el PKCS#12 no contiene llave privada"}
	}
	if len(certs) == 0 {
		return nil, &domain.CertificateError{Reason: "el PKCS#12 no contiene certificados"}
	}
	for _, c := range certs {
		if pub, ok := c.PublicKey.(*rsa.PublicKey); ok && pub.N.Cmp(key.N) == 0 {
			return &KeyPair{Key: key, Leaf: c}, nil
		}
	}
	return nil, &domain.CertificateError{Reason: "ningún certificado corresponde a la llave privada"}
}

// LoadFromFile lee el .p12 de disco (cmd/certinfo).
func LoadFromFile(path, password string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.CertificateError{Reason: "leer p12", Err: err}
	}
	defer wipeBytes(data)
	return LoadFromP12(data, password)
}

// pkcs12.ToPEM etiqueta la llave como "PRIVATE KEY" aunque la serializa en PKCS#1.
func parseRSAKey(b *pem.Block) (*rsa.PrivateKey, error) {
	if k, err := x509.ParsePKCS1PrivateKey(b.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(b.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("tipo de llave %T, se requiere RSA", k)
	}
	return rsaKey, nil
}

func wipe(b *pem.Block) { wipeBytes(b.Bytes) }

func wipeBytes(p []byte) {
	for i := range p {
		p[i] = 0
	}
}

// CertificateInfo datos visibles del certificado, sin material secreto.
type CertificateInfo struct {
	Subject      string
	Issuer       string
	SerialNumber string
	NotBefore    time.Time
	NotAfter     time.Time
	Expired      bool
}

// Describe resume el certificado hoja a la fecha now.
func Describe(cert *x509.Certificate, now time.Time) CertificateInfo {
	return CertificateInfo{
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		SerialNumber: cert.SerialNumber.String(),
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		Expired:      now.After(cert.NotAfter) || now.Before(cert.NotBefore),
	}
}
