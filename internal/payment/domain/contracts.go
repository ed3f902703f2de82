package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// External collaborator contracts. The order/cart domain, card vault and user
// store live outside this driver; checkout requests carry snapshots of them.

type Order struct {
	ID           snowflake.ID
	Currency     string
	DueAmount    decimal.Decimal
	ShippingName string
	ShippingCost decimal.Decimal
	Address      Address
	Items        []OrderItem
}

type OrderItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int64
}

type Address struct {
	Name       string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	ZipCode    string
	CountryISO string
}

type User struct {
	ID    snowflake.ID
	Name  string
	Email string
	Phone string
}

// Card carries the PAN and billing fields needed for processor-side
// tokenization. Never persisted by this driver.
type Card struct {
	ID         snowflake.ID
	Number     string
	ExpMonth   int
	ExpYear    int
	CVC        string
	HolderName string
	Line1      string
	Line2      string
	City       string
	State      string
	CountryISO string
}
