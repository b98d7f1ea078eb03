// Package rates fetches the central bank key rate, used as the default
// annual rate for plans created without an explicit one.
package rates

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/ledgerline/installment-service/internal/config"
)

// Client handles integration with the central bank rate service.
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new rates client.
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.RatesURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// KeyRate returns the most recent published key rate in percent.
func (c *Client) KeyRate(ctx context.Context) (float64, error) {
	body, err := c.send(ctx, c.buildRequest())
	if err != nil {
		return 0, err
	}
	rate, err := parseKeyRate(body)
	if err != nil {
		return 0, err
	}
	c.log.Infof("Fetched key rate: %.2f%%", rate)
	return rate, nil
}

// buildRequest creates the SOAP envelope for a key rate lookup over the
// last 30 days.
func (c *Client) buildRequest() string {
	fromDate := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	toDate := time.Now().Format("2006-01-02")
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
			<soap12:Body>
				<KeyRate xmlns="http://web.cbr.ru/">
					<fromDate>%s</fromDate>
					<ToDate>%s</ToDate>
				</KeyRate>
			</soap12:Body>
		</soap12:Envelope>`, fromDate, toDate)
}

func (c *Client) send(ctx context.Context, envelope string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(envelope))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/KeyRate")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// parseKeyRate extracts the latest rate value from the SOAP response. Rows
// arrive oldest first, so the last KR element wins.
func parseKeyRate(body []byte) (float64, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	rows := doc.FindElements("//KR")
	if len(rows) == 0 {
		return 0, fmt.Errorf("no rate data in response")
	}
	rateElem := rows[len(rows)-1].FindElement("Rate")
	if rateElem == nil {
		return 0, fmt.Errorf("no rate value in response")
	}
	rate, err := strconv.ParseFloat(rateElem.Text(), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate value %q: %w", rateElem.Text(), err)
	}
	return rate, nil
}
