package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/paybridge/internal/payment/domain"
)

type addressRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zip_code"`
	CountryISO string `json:"country_iso"`
}

type orderItemRequest struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price" binding:"required"`
	Quantity int64           `json:"quantity" binding:"required,gt=0"`
}

type checkoutRequest struct {
	AccountID   string    `json:"account_id" binding:"required"`
	PaymentUUID uuid.UUID `json:"payment_uuid" binding:"required"`
	ReturnURL   string    `json:"return_url"`

	User struct {
		ID    string `json:"id" binding:"required"`
		Name  string `json:"name"`
		Email string `json:"email" binding:"required,email"`
		Phone string `json:"phone"`
	} `json:"user" binding:"required"`

	Card struct {
		ID         string `json:"id" binding:"required"`
		Number     string `json:"number" binding:"required"`
		ExpMonth   int    `json:"exp_month" binding:"required"`
		ExpYear    int    `json:"exp_year" binding:"required"`
		CVC        string `json:"cvc"`
		HolderName string `json:"holder_name"`
		Line1      string `json:"line1"`
		Line2      string `json:"line2"`
		City       string `json:"city"`
		State      string `json:"state"`
		CountryISO string `json:"country_iso"`
	} `json:"card" binding:"required"`

	Order struct {
		ID           string           `json:"id" binding:"required"`
		Currency     string           `json:"currency" binding:"required"`
		DueAmount    decimal.Decimal  `json:"due_amount"`
		ShippingName string           `json:"shipping_name"`
		ShippingCost decimal.Decimal  `json:"shipping_cost"`
		Address      addressRequest   `json:"address"`
		Items        []orderItemRequest `json:"items" binding:"required,min=1"`
	} `json:"order" binding:"required"`

	Metadata map[string]any `json:"metadata"`
}

func (s *Server) HandleCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	domainReq, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.checkoutSvc.ProcessPayment(c.Request.Context(), domainReq)
	if err != nil {
		var redirect *paymentdomain.RedirectionError
		if errors.As(err, &redirect) {
			c.JSON(http.StatusOK, gin.H{
				"status":       string(paymentdomain.StatusRequiresAction),
				"redirect_url": redirect.URL,
				"payment_uuid": domainReq.PaymentUUID.String(),
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

type detachRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

func (s *Server) HandleDetachPaymentMethod(c *gin.Context) {
	methodID := strings.TrimSpace(c.Param("id"))
	if methodID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req detachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := parseID(req.AccountID, "account_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.checkoutSvc.DetachPaymentMethod(c.Request.Context(), accountID, methodID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "detached"})
}

func (r *checkoutRequest) toDomain() (paymentdomain.CheckoutRequest, error) {
	accountID, err := parseID(r.AccountID, "account_id")
	if err != nil {
		return paymentdomain.CheckoutRequest{}, err
	}
	userID, err := parseID(r.User.ID, "user.id")
	if err != nil {
		return paymentdomain.CheckoutRequest{}, err
	}
	cardID, err := parseID(r.Card.ID, "card.id")
	if err != nil {
		return paymentdomain.CheckoutRequest{}, err
	}
	orderID, err := parseID(r.Order.ID, "order.id")
	if err != nil {
		return paymentdomain.CheckoutRequest{}, err
	}

	items := make([]paymentdomain.OrderItem, 0, len(r.Order.Items))
	for _, item := range r.Order.Items {
		items = append(items, paymentdomain.OrderItem{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	return paymentdomain.CheckoutRequest{
		AccountID:   accountID,
		PaymentUUID: r.PaymentUUID,
		ReturnURL:   r.ReturnURL,
		User: paymentdomain.User{
			ID:    userID,
			Name:  r.User.Name,
			Email: r.User.Email,
			Phone: r.User.Phone,
		},
		Card: paymentdomain.Card{
			ID:         cardID,
			Number:     r.Card.Number,
			ExpMonth:   r.Card.ExpMonth,
			ExpYear:    r.Card.ExpYear,
			CVC:        r.Card.CVC,
			HolderName: r.Card.HolderName,
			Line1:      r.Card.Line1,
			Line2:      r.Card.Line2,
			City:       r.Card.City,
			State:      r.Card.State,
			CountryISO: r.Card.CountryISO,
		},
		Order: paymentdomain.Order{
			ID:           orderID,
			Currency:     strings.ToUpper(strings.TrimSpace(r.Order.Currency)),
			DueAmount:    r.Order.DueAmount,
			ShippingName: r.Order.ShippingName,
			ShippingCost: r.Order.ShippingCost,
			Address: paymentdomain.Address{
				Name:       r.Order.Address.Name,
				Phone:      r.Order.Address.Phone,
				Line1:      r.Order.Address.Line1,
				Line2:      r.Order.Address.Line2,
				City:       r.Order.Address.City,
				State:      r.Order.Address.State,
				ZipCode:    r.Order.Address.ZipCode,
				CountryISO: r.Order.Address.CountryISO,
			},
			Items: items,
		},
		Metadata: r.Metadata,
	}, nil
}

func parseID(value string, field string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, newValidationError(field, "invalid_id", "invalid identifier")
	}
	return id, nil
}
