// Package loyverse cliente REST del POS Loyverse (API v1.0).
package loyverse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jhoicas/loyverse-sri/internal/domain"
	"github.com/jhoicas/loyverse-sri/internal/domain/entity"
	"github.com/jhoicas/loyverse-sri/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.loyverse.com/v1.0"
	maxPageLimit   = 250

	// defaultMaxPages corta la paginación si el API devolviera cursores en ciclo.
	defaultMaxPages = 1000
)

// ErrTooManyPages la ventana pedida supera el máximo de páginas; nunca se
// devuelve un listado parcial.
var ErrTooManyPages = errors.New("loyverse: la ventana supera el máximo de páginas")

// timeLayout formato aceptado por created_at_min / created_at_max.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Config parámetros del cliente.
type Config struct {
	BaseURL   string
	Token     string
	PageLimit int
	MaxPages  int
	Timeout   time.Duration
}

// Client cliente del API de Loyverse. Es seguro para uso concurrente.
type Client struct {
	http      *resty.Client
	token     string
	pageLimit int
	maxPages  int
	log       *logger.Logger
}

// NewClient construye el cliente. El token puede sustituirse luego con WithToken.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > maxPageLimit {
		cfg.PageLimit = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if log == nil {
		log = logger.Nop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{
		http:      client,
		token:     cfg.Token,
		pageLimit: cfg.PageLimit,
		maxPages:  cfg.MaxPages,
		log:       log.Component("loyverse"),
	}
}

// WithToken devuelve una copia que usa el token indicado (el de la configuración
// del emisor). Si token está vacío se conserva el actual.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	if token != "" {
		cp.token = token
	}
	return &cp
}

// ListReceipts devuelve los recibos creados en [since, until], recorriendo todas
// las páginas por cursor. until cero significa sin límite superior.
func (c *Client) ListReceipts(ctx context.Context, since, until time.Time) ([]entity.Receipt, error) {
	var (
		out    []entity.Receipt
		cursor string
	)
	for page := 0; page < c.maxPages; page++ {
		var body receiptsPage
		req := c.request(ctx).
			SetQueryParam("limit", fmt.Sprint(c.pageLimit)).
			SetResult(&body)
		if !since.IsZero() {
			req.SetQueryParam("created_at_min", since.UTC().Format(timeLayout))
		}
		if !until.IsZero() {
			req.SetQueryParam("created_at_max", until.UTC().Format(timeLayout))
		}
		if cursor != "" {
			req.SetQueryParam("cursor", cursor)
		}

		resp, err := req.Get("/receipts")
		if err := c.check(resp, err, "/receipts"); err != nil {
			return nil, err
		}
		for _, r := range body.Receipts {
			out = append(out, r.toEntity())
		}
		c.log.Debug().Int("page", page).Int("receipts", len(body.Receipts)).Msg("página de recibos")

		if body.Cursor == "" || body.Cursor == cursor {
			return out, nil
		}
		cursor = body.Cursor
	}
	c.log.Error().Int("max_pages", c.maxPages).Int("receipts", len(out)).Msg("paginación truncada")
	return nil, fmt.Errorf("%w (%d páginas, acotar la ventana)", ErrTooManyPages, c.maxPages)
}

// GetCustomer obtiene un cliente por id. Devuelve domain.ErrNotFound si no existe.
func (c *Client) GetCustomer(ctx context.Context, id string) (*entity.Customer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("loyverse: %w: id de cliente vacío", domain.ErrInvalidInput)
	}
	var body customerDTO
	resp, err := c.request(ctx).
		SetPathParam("id", id).
		SetResult(&body).
		Get("/customers/{id}")
	if err := c.check(resp, err, "/customers/"+id); err != nil {
		return nil, err
	}
	return body.toEntity(), nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetError(&errorBody{})
}

// check traduce fallas de red y respuestas no exitosas a errores de dominio.
func (c *Client) check(resp *resty.Response, err error, path string) error {
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Error().Err(err).Str("path", path).Msg("falla de red")
		}
		return fmt.Errorf("loyverse %s: %w", path, err)
	}
	if resp.IsSuccess() {
		return nil
	}

	detail := resp.Status()
	if eb, ok := resp.Error().(*errorBody); ok && len(eb.Errors) > 0 {
		detail = eb.Errors[0].Code + ": " + eb.Errors[0].Details
	}
	c.log.Warn().Str("path", path).Int("status", resp.StatusCode()).Str("detail", detail).Msg("respuesta no exitosa")

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("loyverse %s: %w: %s", path, domain.ErrUnauthorized, detail)
	case http.StatusNotFound:
		return fmt.Errorf("loyverse %s: %w: %s", path, domain.ErrNotFound, detail)
	default:
		return fmt.Errorf("loyverse %s: HTTP %d: %s", path, resp.StatusCode(), detail)
	}
}
