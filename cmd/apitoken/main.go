// apitoken emite un JWT para la API de administración.
//
// Uso: go run ./cmd/apitoken -operator caja-norte -role operador -minutes 43200
// El secreto sale de JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/loyverse-sri/pkg/config"
	"github.com/jhoicas/loyverse-sri/pkg/jwt"
)

func main() {
	operator := flag.String("operator", "", "identificador del operador (sub)")
	role := flag.String("role", jwt.RoleOperator, "rol: admin u operador")
	minutes := flag.Int("minutes", 0, "vigencia en minutos (0 = JWT_EXPIRATION_MINUTES)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(1)
	}
	if *role != jwt.RoleAdmin && *role != jwt.RoleOperator {
		fmt.Fprintf(os.Stderr, "rol desconocido %q (usar %s|%s)\n", *role, jwt.RoleAdmin, jwt.RoleOperator)
		os.Exit(2)
	}
	exp := *minutes
	if exp <= 0 {
		exp = cfg.JWT.Expiration
	}

	tok, err := jwt.Generate(cfg.JWT.Secret, *operator, *role, cfg.JWT.Issuer, exp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generar token:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
