package stripe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/paybridge/internal/payment/domain"
)

const apiBase = "https://api.stripe.com"

type customerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type tokenResponse struct {
	ID string `json:"id"`
}

type cardResponse struct {
	ID string `json:"id"`
}

type invoiceResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentIntent string `json:"payment_intent"`
}

type intentResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	AmountReceived int64  `json:"amount_received"`
	Currency       string `json:"currency"`
	PaymentMethod  string `json:"payment_method"`
	NextAction     *struct {
		RedirectToURL *struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the Stripe REST API for one account's secret key.
type Client struct {
	apiKey string
	client *http.Client
}

// NewClient builds a processor client bound to a secret key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: strings.TrimSpace(apiKey),
		client: &http.Client{Timeout: 12 * time.Second},
	}
}

// Factory adapts NewClient to the domain client factory contract.
func Factory(secretKey string) domain.ProcessorClient {
	return NewClient(secretKey)
}

func (c *Client) CreateCustomer(ctx context.Context, params domain.CustomerParams) (*domain.ProcessorCustomer, error) {
	values := url.Values{}
	values.Set("name", params.Name)
	values.Set("email", params.Email)
	values.Set("phone", params.Phone)

	var resp customerResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/customers", values, &resp); err != nil {
		return nil, err
	}
	return &domain.ProcessorCustomer{ID: resp.ID, Name: resp.Name, Email: resp.Email, Phone: resp.Phone}, nil
}

func (c *Client) RetrieveCustomer(ctx context.Context, id string) (*domain.ProcessorCustomer, error) {
	var resp customerResponse
	if err := c.doRequest(ctx, http.MethodGet, "/v1/customers/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return &domain.ProcessorCustomer{ID: resp.ID, Name: resp.Name, Email: resp.Email, Phone: resp.Phone}, nil
}

func (c *Client) CreateCardToken(ctx context.Context, card domain.Card) (*domain.CardToken, error) {
	values := url.Values{}
	values.Set("card[number]", card.Number)
	values.Set("card[exp_month]", strconv.Itoa(card.ExpMonth))
	values.Set("card[exp_year]", strconv.Itoa(card.ExpYear))
	values.Set("card[cvc]", card.CVC)
	values.Set("card[name]", card.HolderName)
	values.Set("card[address_line1]", card.Line1)
	values.Set("card[address_line2]", card.Line2)
	values.Set("card[address_city]", card.City)
	values.Set("card[address_state]", card.State)
	values.Set("card[address_country]", card.CountryISO)

	var resp tokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/tokens", values, &resp); err != nil {
		return nil, err
	}
	return &domain.CardToken{ID: resp.ID}, nil
}

func (c *Client) AttachCard(ctx context.Context, customerID string, tokenID string, metadata map[string]string) (*domain.ProcessorCard, error) {
	values := url.Values{}
	values.Set("source", tokenID)
	encodeMetadata(values, metadata)

	var resp cardResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/customers/"+customerID+"/sources", values, &resp); err != nil {
		return nil, err
	}
	return &domain.ProcessorCard{ID: resp.ID}, nil
}

func (c *Client) DetachPaymentMethod(ctx context.Context, id string) error {
	var resp cardResponse
	return c.doRequest(ctx, http.MethodPost, "/v1/payment_methods/"+id+"/detach", url.Values{}, &resp)
}

func (c *Client) CreateInvoiceItem(ctx context.Context, params domain.InvoiceItemParams) error {
	values := url.Values{}
	values.Set("customer", params.CustomerID)
	values.Set("currency", strings.ToLower(params.Currency))
	values.Set("description", params.Description)
	if params.UnitAmount != nil {
		values.Set("unit_amount", strconv.FormatInt(*params.UnitAmount, 10))
		values.Set("quantity", strconv.FormatInt(params.Quantity, 10))
	}
	if params.Amount != nil {
		values.Set("amount", strconv.FormatInt(*params.Amount, 10))
	}

	var resp struct {
		ID string `json:"id"`
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/invoiceitems", values, &resp)
}

func (c *Client) CreateInvoice(ctx context.Context, params domain.InvoiceParams) (*domain.Invoice, error) {
	values := url.Values{}
	values.Set("customer", params.CustomerID)
	values.Set("auto_advance", "false")
	values.Set("collection_method", "send_invoice")
	values.Set("days_until_due", strconv.Itoa(params.DaysUntilDue))
	values.Set("description", params.Description)
	if params.StatementDescriptor != "" {
		values.Set("statement_descriptor", params.StatementDescriptor)
	}
	encodeMetadata(values, params.Metadata)

	var resp invoiceResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/invoices", values, &resp); err != nil {
		return nil, err
	}
	return &domain.Invoice{ID: resp.ID, Status: resp.Status, PaymentIntentID: resp.PaymentIntent}, nil
}

func (c *Client) FinalizeInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	var resp invoiceResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/invoices/"+invoiceID+"/finalize", url.Values{}, &resp); err != nil {
		return nil, err
	}
	return &domain.Invoice{ID: resp.ID, Status: resp.Status, PaymentIntentID: resp.PaymentIntent}, nil
}

func (c *Client) RetrieveIntent(ctx context.Context, id string) (*domain.Intent, error) {
	return c.intentRequest(ctx, http.MethodGet, "/v1/payment_intents/"+id, nil)
}

func (c *Client) UpdateIntent(ctx context.Context, id string, params domain.IntentUpdateParams) (*domain.Intent, error) {
	values := url.Values{}
	if params.Shipping != nil {
		values.Set("shipping[name]", params.Shipping.Name)
		values.Set("shipping[phone]", params.Shipping.Phone)
		values.Set("shipping[carrier]", params.Shipping.Carrier)
		values.Set("shipping[address][line1]", params.Shipping.Address.Line1)
		values.Set("shipping[address][line2]", params.Shipping.Address.Line2)
		values.Set("shipping[address][city]", params.Shipping.Address.City)
		values.Set("shipping[address][state]", params.Shipping.Address.State)
		values.Set("shipping[address][postal_code]", params.Shipping.Address.ZipCode)
		values.Set("shipping[address][country]", params.Shipping.Address.CountryISO)
	}
	encodeMetadata(values, params.Metadata)
	if params.ReceiptEmail != "" {
		values.Set("receipt_email", params.ReceiptEmail)
	}
	if params.PaymentMethod != "" {
		values.Set("payment_method", params.PaymentMethod)
	}
	if params.CardOnly {
		values.Set("payment_settings[payment_method_types][]", "card")
	}

	return c.intentRequest(ctx, http.MethodPost, "/v1/payment_intents/"+id, values)
}

func (c *Client) ConfirmIntent(ctx context.Context, id string, returnURL string) (*domain.Intent, error) {
	values := url.Values{}
	if returnURL != "" {
		values.Set("return_url", returnURL)
	}
	return c.intentRequest(ctx, http.MethodPost, "/v1/payment_intents/"+id+"/confirm", values)
}

func (c *Client) intentRequest(ctx context.Context, method string, path string, values url.Values) (*domain.Intent, error) {
	body, err := c.rawRequest(ctx, method, path, values)
	if err != nil {
		return nil, err
	}

	var resp intentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &domain.APIError{Message: "stripe_response_invalid"}
	}

	intent := &domain.Intent{
		ID:             resp.ID,
		Status:         resp.Status,
		Amount:         resp.Amount,
		AmountReceived: resp.AmountReceived,
		Currency:       strings.ToUpper(resp.Currency),
		PaymentMethod:  resp.PaymentMethod,
		Raw:            body,
	}
	if resp.NextAction != nil && resp.NextAction.RedirectToURL != nil {
		intent.NextActionURL = resp.NextAction.RedirectToURL.URL
	}
	return intent, nil
}

func (c *Client) doRequest(ctx context.Context, method string, path string, values url.Values, out any) error {
	body, err := c.rawRequest(ctx, method, path, values)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) rawRequest(ctx context.Context, method string, path string, values url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, &domain.APIError{Message: "missing_secret_key"}
	}

	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr errorResponse
		if err := json.Unmarshal(body, &stripeErr); err != nil {
			return nil, &domain.APIError{HTTPStatus: resp.StatusCode, Message: "stripe_request_failed"}
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return nil, &domain.APIError{
			HTTPStatus: resp.StatusCode,
			Code:       stripeErr.Error.Code,
			Message:    message,
		}
	}

	return body, nil
}

func encodeMetadata(values url.Values, metadata map[string]string) {
	for key, value := range metadata {
		values.Set("metadata["+key+"]", value)
	}
}
