// Package gateway builds signed payment requests and verifies gateway
// callbacks.
//
// The gateway's signature scheme is positional: a SHA-512 digest over an
// exact pipe-joined field sequence with a shared salt. Request and callback
// use mirrored field orders, and the empty-placeholder count must match the
// gateway's documented scheme exactly or valid callbacks will be rejected.
package gateway

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrMissingField     = errors.New("callback missing mandatory field")
	ErrInvalidSignature = errors.New("callback signature mismatch")
)

// Statuses the gateway reports in callbacks.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Config holds merchant credentials and endpoints.
type Config struct {
	MerchantKey  string
	MerchantSalt string
	// BaseURL is the gateway's hosted payment page.
	BaseURL string
	// CallbackURL is the server endpoint the gateway posts the signed
	// outcome to (surl and furl both point here; the payload carries the
	// status). Empty means the frontend URLs double as the callback.
	CallbackURL string
	// SuccessURL and FailureURL are the frontend pages the payer's browser
	// is sent to once the callback has been processed.
	SuccessURL string
	FailureURL string
}

// Client signs requests for one merchant account.
type Client struct {
	key         string
	salt        string
	baseURL     string
	callbackURL string
	successURL  string
	failureURL  string
}

// New creates a gateway client.
func New(cfg Config) *Client {
	return &Client{
		key:         cfg.MerchantKey,
		salt:        cfg.MerchantSalt,
		baseURL:     cfg.BaseURL,
		callbackURL: cfg.CallbackURL,
		successURL:  cfg.SuccessURL,
		failureURL:  cfg.FailureURL,
	}
}

func (c *Client) returnURL(fallback string) string {
	if c.callbackURL != "" {
		return c.callbackURL
	}
	return fallback
}

// PaymentParams are the merchant-supplied fields of a payment request.
type PaymentParams struct {
	TxnID       string // payment id, doubles as gateway transaction id
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
	Phone       string
	// UDF1..UDF5 ride through the gateway untouched and come back in the
	// callback; used to correlate contract and purpose.
	UDF1 string
	UDF2 string
	UDF3 string
	UDF4 string
	UDF5 string
}

// PaymentRequest is a ready-to-post form for the gateway's payment page.
type PaymentRequest struct {
	Action string            `json:"action"`
	Fields map[string]string `json:"fields"`
}

func sha512hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

// requestHash computes the forward signature:
// key|txnid|amount|productinfo|firstname|email|udf1..udf5|x5 empty|salt
func (c *Client) requestHash(p PaymentParams) string {
	fields := []string{
		c.key, p.TxnID, p.Amount, p.ProductInfo, p.FirstName, p.Email,
		p.UDF1, p.UDF2, p.UDF3, p.UDF4, p.UDF5,
		"", "", "", "", "",
		c.salt,
	}
	return sha512hex(strings.Join(fields, "|"))
}

// callbackHash computes the reverse signature over the mirrored order:
// salt|status|x5 empty|udf5..udf1|email|firstname|productinfo|amount|txnid|key
func (c *Client) callbackHash(v url.Values) string {
	fields := []string{
		c.salt, v.Get("status"),
		"", "", "", "", "",
		v.Get("udf5"), v.Get("udf4"), v.Get("udf3"), v.Get("udf2"), v.Get("udf1"),
		v.Get("email"), v.Get("firstname"), v.Get("productinfo"),
		v.Get("amount"), v.Get("txnid"), c.key,
	}
	return sha512hex(strings.Join(fields, "|"))
}

// BuildPaymentRequest assembles the signed form the client posts to the
// gateway's payment page.
func (c *Client) BuildPaymentRequest(p PaymentParams) *PaymentRequest {
	return &PaymentRequest{
		Action: c.baseURL,
		Fields: map[string]string{
			"key":         c.key,
			"txnid":       p.TxnID,
			"amount":      p.Amount,
			"productinfo": p.ProductInfo,
			"firstname":   p.FirstName,
			"email":       p.Email,
			"phone":       p.Phone,
			"udf1":        p.UDF1,
			"udf2":        p.UDF2,
			"udf3":        p.UDF3,
			"udf4":        p.UDF4,
			"udf5":        p.UDF5,
			"surl":        c.returnURL(c.successURL),
			"furl":        c.returnURL(c.failureURL),
			"hash":        c.requestHash(p),
		},
	}
}

// Callback is a verified gateway callback.
type Callback struct {
	TxnID  string
	Status string
	Amount string
	UDF1   string
	UDF2   string
	// Raw is the full form payload, kept for the payment audit trail.
	Raw string
}

// Success reports whether the gateway confirmed the payment.
func (cb *Callback) Success() bool {
	return cb.Status == StatusSuccess
}

var mandatoryCallbackFields = []string{"txnid", "status", "amount", "hash"}

// VerifyCallback checks mandatory fields and the reverse signature before
// trusting anything in the payload. Status and amount fields are only
// meaningful after this passes.
func (c *Client) VerifyCallback(v url.Values) (*Callback, error) {
	for _, f := range mandatoryCallbackFields {
		if v.Get(f) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}
	if !strings.EqualFold(v.Get("hash"), c.callbackHash(v)) {
		return nil, ErrInvalidSignature
	}
	return &Callback{
		TxnID:  v.Get("txnid"),
		Status: v.Get("status"),
		Amount: v.Get("amount"),
		UDF1:   v.Get("udf1"),
		UDF2:   v.Get("udf2"),
		Raw:    v.Encode(),
	}, nil
}

// RedirectURL builds the browser redirect for a finished callback. The
// payer's browser always gets a redirect, never an error page; the target
// encodes the outcome.
func (c *Client) RedirectURL(success bool, txnID string) string {
	base := c.failureURL
	if success {
		base = c.successURL
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "txnid=" + url.QueryEscape(txnID)
}
