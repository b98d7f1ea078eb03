package rates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyRateResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <KeyRateResponse xmlns="http://web.cbr.ru/">
      <KeyRateResult>
        <diffgram>
          <KeyRate>
            <KR><DT>2024-01-10T00:00:00+03:00</DT><Rate>15.00</Rate></KR>
            <KR><DT>2024-01-25T00:00:00+03:00</DT><Rate>16.00</Rate></KR>
          </KeyRate>
        </diffgram>
      </KeyRateResult>
    </KeyRateResponse>
  </soap:Body>
</soap:Envelope>`

func TestParseKeyRateTakesLatestRow(t *testing.T) {
	rate, err := parseKeyRate([]byte(keyRateResponse))
	require.NoError(t, err)
	assert.InDelta(t, 16.0, rate, 0.001)
}

func TestParseKeyRateEmptyResponse(t *testing.T) {
	_, err := parseKeyRate([]byte(`<Envelope></Envelope>`))
	assert.Error(t, err)
}

func TestParseKeyRateMalformed(t *testing.T) {
	_, err := parseKeyRate([]byte(`not xml`))
	assert.Error(t, err)
}
