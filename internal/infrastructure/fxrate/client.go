package fxrate

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// feedDateLayout is the dd/MM/yyyy format the indicator web service speaks
const feedDateLayout = "02/01/2006"

// Rate is one published exchange rate: local currency units per reporting
// unit on a calendar day
type Rate struct {
	Date  time.Time
	Value decimal.Decimal
}

// ClientConfig holds the feed connection settings
type ClientConfig struct {
	Endpoint       string
	Indicator      string
	User           string
	Token          string
	RequestTimeout time.Duration
}

// Client fetches exchange rates from a central-bank economic indicator web
// service. The service is an ASMX endpoint answering XML: the response wraps
// an escaped inner document holding one value per published day.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// envelope is the outer ASMX response
type envelope struct {
	XMLName xml.Name `xml:"string"`
	Body    string   `xml:",chardata"`
}

// indicatorDoc is the inner document carried inside the envelope
type indicatorDoc struct {
	Rows []indicatorRow `xml:"INGC011_CAT_INDICADORECONOMIC"`
}

type indicatorRow struct {
	Date  string `xml:"DES_FECHA"`
	Value string `xml:"NUM_VALOR"`
}

// RatesBetween fetches the published rates in [from, to], inclusive. Days
// without a published value (weekends, holidays) are simply absent.
func (c *Client) RatesBetween(ctx context.Context, from, to time.Time) ([]Rate, error) {
	params := url.Values{}
	params.Set("Indicador", c.cfg.Indicator)
	params.Set("FechaInicio", from.Format(feedDateLayout))
	params.Set("FechaFinal", to.Format(feedDateLayout))
	params.Set("Nombre", c.cfg.User)
	params.Set("SubNiveles", "N")
	params.Set("CorreoElectronico", c.cfg.User)
	params.Set("Token", c.cfg.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.Endpoint+"/ObtenerIndicadoresEconomicosXML?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rate feed: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rate feed read failed: %w", err)
	}
	return parseRates(raw)
}

// parseRates unwraps the envelope and decodes the per-day values
func parseRates(raw []byte) ([]Rate, error) {
	var env envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("rate feed envelope decode failed: %w", err)
	}

	inner := strings.TrimSpace(env.Body)
	if inner == "" {
		return nil, nil
	}

	var doc indicatorDoc
	if err := xml.Unmarshal([]byte(inner), &doc); err != nil {
		return nil, fmt.Errorf("rate feed document decode failed: %w", err)
	}

	rates := make([]Rate, 0, len(doc.Rows))
	for _, row := range doc.Rows {
		date, err := parseFeedDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("rate feed date %q: %w", row.Date, err)
		}
		value, err := decimal.NewFromString(strings.TrimSpace(row.Value))
		if err != nil {
			return nil, fmt.Errorf("rate feed value %q: %w", row.Value, err)
		}
		rates = append(rates, Rate{Date: date, Value: value})
	}
	return rates, nil
}

// parseFeedDate accepts the timestamp forms the service has been seen to emit
func parseFeedDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}
