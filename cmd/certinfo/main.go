// certinfo diagnostica el certificado PKCS#12 de firma del SRI: lo abre, muestra
// sujeto, emisor y vigencia, firma un comprobante de prueba y recalcula el digest.
//
// Uso: go run ./cmd/certinfo [ruta.p12]
// La ruta por defecto y la clave salen de SRI_CERT_PATH y SRI_CERT_PASSWORD.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/loyverse-sri/internal/infrastructure/sri/signer"
	"github.com/jhoicas/loyverse-sri/pkg/config"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
)

const muestra = `<?xml version="1.0" encoding="UTF-8"?>
<factura id="comprobante" version="1.1.0"><infoTributaria><ambiente>1</ambiente><razonSocial>PRUEBA DE FIRMA</razonSocial></infoTributaria></factura>`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(1)
	}
	path := cfg.SRI.CertPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "uso: certinfo <ruta.p12> (o SRI_CERT_PATH)")
		os.Exit(2)
	}

	fmt.Println("DIAGNÓSTICO DE CERTIFICADO SRI")
	fmt.Println("------------------------------")
	fmt.Printf("Archivo: %s\n", path)

	pair, err := signer.LoadFromFile(path, cfg.SRI.CertPassword)
	if err != nil {
		// el error nunca incluye la clave
		fmt.Printf("\nERROR: %v\n", err)
		os.Exit(1)
	}

	info := signer.Describe(pair.Leaf, time.Now())
	fmt.Printf("Sujeto:   %s\n", info.Subject)
	fmt.Printf("Emisor:   %s\n", info.Issuer)
	fmt.Printf("Serie:    %s\n", info.SerialNumber)
	fmt.Printf("Vigencia: %s → %s\n", info.NotBefore.Format(time.DateOnly), info.NotAfter.Format(time.DateOnly))
	if info.Expired {
		fmt.Println("\nEl certificado está VENCIDO o aún no es válido: el SRI rechazará las firmas.")
		os.Exit(1)
	}
	fmt.Printf("Vence en %d días\n", int(time.Until(info.NotAfter).Hours()/24))

	svc := signer.NewDigitalSignatureService(cfg.SRI.Canonicalization, logger.Nop())
	signed, err := svc.SignWithKeyPair([]byte(muestra), pair)
	if err != nil {
		fmt.Printf("\nERROR al firmar el comprobante de prueba: %v\n", err)
		os.Exit(1)
	}
	if err := signer.VerifyDigest(signed); err != nil {
		fmt.Printf("\nERROR el digest no coincide: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nFirma de prueba correcta (%s, %d bytes).\n", cfg.SRI.Canonicalization, len(signed))
}
