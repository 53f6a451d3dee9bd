package gateway

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return New(Config{
		MerchantKey:  "merchant-key-1",
		MerchantSalt: "merchant-salt-1",
		BaseURL:      "https://gateway.example.com/pay",
		SuccessURL:   "https://app.example.com/payments/success",
		FailureURL:   "https://app.example.com/payments/failure",
	})
}

func testParams() PaymentParams {
	return PaymentParams{
		TxnID:       "#PAY0123456789abcdef01234567",
		Amount:      "500.00",
		ProductInfo: "Contract funding",
		FirstName:   "Ada",
		Email:       "ada@example.com",
		UDF1:        "#CTR0123456789abcdef01234567",
		UDF2:        "contract_funding",
	}
}

// Known-answer vectors pin the exact field order and placeholder count;
// any drift breaks real gateway traffic.
const (
	wantRequestHash = "238b49c42bf1fa89553603f5c96141cdcfe1aaf75158b6174148e0ecc729018106b2108f8b565c9b16356823939476d2b3db56d1c23c58ffb89219add48c2e0e"
	wantSuccessHash = "12ca72efb49eaf15d87ffb6bca1e8e3dc4300799aef76e5726416d820fce34c7ee62c38932fe0ecea2d76eacf174fc68d652f01fe2dbc0db2bf8c95d04e006e5"
	wantFailureHash = "c2863251c9d99ce7966f77431038b9acbe7bf75b18b97a03576f7f0233f3cc20cdd0dc887acba823318131315bf55b32fc0705e151875d23d213f940c680d56d"
)

func callbackValues(status, hash string) url.Values {
	return url.Values{
		"txnid":       {"#PAY0123456789abcdef01234567"},
		"status":      {status},
		"amount":      {"500.00"},
		"productinfo": {"Contract funding"},
		"firstname":   {"Ada"},
		"email":       {"ada@example.com"},
		"udf1":        {"#CTR0123456789abcdef01234567"},
		"udf2":        {"contract_funding"},
		"hash":        {hash},
	}
}

func TestBuildPaymentRequest(t *testing.T) {
	req := testClient().BuildPaymentRequest(testParams())

	assert.Equal(t, "https://gateway.example.com/pay", req.Action)
	assert.Equal(t, "merchant-key-1", req.Fields["key"])
	assert.Equal(t, "#PAY0123456789abcdef01234567", req.Fields["txnid"])
	assert.Equal(t, "500.00", req.Fields["amount"])
	assert.Equal(t, "https://app.example.com/payments/success", req.Fields["surl"])
	assert.Equal(t, "https://app.example.com/payments/failure", req.Fields["furl"])
	assert.Equal(t, wantRequestHash, req.Fields["hash"])
}

func TestCallbackURLOverridesReturnTargets(t *testing.T) {
	c := New(Config{
		MerchantKey:  "merchant-key-1",
		MerchantSalt: "merchant-salt-1",
		BaseURL:      "https://gateway.example.com/pay",
		CallbackURL:  "https://api.example.com/v1/payments/callback",
		SuccessURL:   "https://app.example.com/payments/success",
		FailureURL:   "https://app.example.com/payments/failure",
	})
	req := c.BuildPaymentRequest(testParams())
	assert.Equal(t, "https://api.example.com/v1/payments/callback", req.Fields["surl"])
	assert.Equal(t, "https://api.example.com/v1/payments/callback", req.Fields["furl"])
	// Browser redirects still target the frontend pages.
	assert.Contains(t, c.RedirectURL(true, "#PAY0123456789abcdef01234567"), "app.example.com/payments/success")
}

func TestVerifyCallbackSuccess(t *testing.T) {
	cb, err := testClient().VerifyCallback(callbackValues("success", wantSuccessHash))
	require.NoError(t, err)
	assert.True(t, cb.Success())
	assert.Equal(t, "#PAY0123456789abcdef01234567", cb.TxnID)
	assert.Equal(t, "500.00", cb.Amount)
	assert.Equal(t, "#CTR0123456789abcdef01234567", cb.UDF1)
}

func TestVerifyCallbackFailureStatus(t *testing.T) {
	cb, err := testClient().VerifyCallback(callbackValues("failure", wantFailureHash))
	require.NoError(t, err)
	assert.False(t, cb.Success())
}

func TestVerifyCallbackHashIsCaseInsensitive(t *testing.T) {
	values := callbackValues("success", "12CA72EFB49EAF15D87FFB6BCA1E8E3DC4300799AEF76E5726416D820FCE34C7EE62C38932FE0ECEA2D76EACF174FC68D652F01FE2DBC0DB2BF8C95D04E006E5")
	_, err := testClient().VerifyCallback(values)
	assert.NoError(t, err)
}

func TestVerifyCallbackRejectsMissingFields(t *testing.T) {
	for _, field := range []string{"txnid", "status", "amount", "hash"} {
		values := callbackValues("success", wantSuccessHash)
		values.Del(field)
		_, err := testClient().VerifyCallback(values)
		assert.ErrorIs(t, err, ErrMissingField, "field %s", field)
	}
}

func TestVerifyCallbackRejectsTamperedAmount(t *testing.T) {
	values := callbackValues("success", wantSuccessHash)
	values.Set("amount", "9999.00")
	_, err := testClient().VerifyCallback(values)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyCallbackRejectsForgedStatus(t *testing.T) {
	// A failure callback re-sent with status flipped to success must fail:
	// the reverse hash covers status.
	values := callbackValues("success", wantFailureHash)
	_, err := testClient().VerifyCallback(values)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyCallbackRejectsWrongSalt(t *testing.T) {
	other := New(Config{MerchantKey: "merchant-key-1", MerchantSalt: "other-salt"})
	_, err := other.VerifyCallback(callbackValues("success", wantSuccessHash))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestRedirectURL(t *testing.T) {
	c := testClient()
	assert.Equal(t,
		"https://app.example.com/payments/success?txnid=%23PAY0123456789abcdef01234567",
		c.RedirectURL(true, "#PAY0123456789abcdef01234567"))
	assert.Equal(t,
		"https://app.example.com/payments/failure?txnid=%23PAY0123456789abcdef01234567",
		c.RedirectURL(false, "#PAY0123456789abcdef01234567"))
}
