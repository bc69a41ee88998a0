package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"approval-ledger/pkg/store"

	"github.com/shopspring/decimal"
)

// Sentinels written at creation until an admin fills the field in.
const (
	AcceptedAtNotUpdated    = "Not updated"
	TransactionIDNotUpdated = "Not Updated"
)

// Transaction is a deposit or withdrawal request.
type Transaction struct {
	ID            string            `json:"id"`
	Description   string            `json:"description"`
	PaymentMethod string            `json:"paymentMethod"`
	Amount        decimal.Decimal   `json:"amount"`
	CreatedBy     string            `json:"createdBy"`
	CreatedAt     string            `json:"createdAt"`
	AcceptedAt    string            `json:"acceptedAt"`
	TransactionID string            `json:"transactionId"`
	Status        TransactionStatus `json:"status"`
	ImagePath     string            `json:"imagePath,omitempty"`
}

func (t Transaction) document() store.Document {
	doc := store.Document{
		"description":   t.Description,
		"paymentMethod": t.PaymentMethod,
		"amount":        t.Amount.String(),
		"createdBy":     t.CreatedBy,
		"createdAt":     t.CreatedAt,
		"acceptedAt":    t.AcceptedAt,
		"transactionId": t.TransactionID,
		"status":        string(t.Status),
	}
	if t.ImagePath != "" {
		doc["imagePath"] = t.ImagePath
	}
	return doc
}

func transactionFromRecord(id string, doc store.Document) Transaction {
	t := Transaction{
		ID:            id,
		Description:   doc.String("description"),
		PaymentMethod: doc.String("paymentMethod"),
		CreatedBy:     ownerOf(doc),
		CreatedAt:     doc.String("createdAt"),
		AcceptedAt:    doc.String("acceptedAt"),
		TransactionID: doc.String("transactionId"),
		ImagePath:     doc.String("imagePath"),
	}
	if amount, ok := toDecimal(doc["amount"]); ok {
		t.Amount = amount
	}
	t.Status = TransactionStatus(doc.String("status"))
	if s, err := ParseTransactionStatus(string(t.Status)); err == nil {
		t.Status = s
	}
	return t
}

// CredentialRequest is a user's request for a third-party website login.
type CredentialRequest struct {
	ID          string           `json:"id"`
	WebsiteName string           `json:"websiteName"`
	WebsiteURL  string           `json:"websiteUrl"`
	Username    string           `json:"username"`
	Password    string           `json:"password"`
	ImgURL      string           `json:"imgUrl"`
	CreatedBy   string           `json:"createdBy"`
	CreatedAt   string           `json:"createdAt"`
	Status      CredentialStatus `json:"status"`
}

func (c CredentialRequest) document() store.Document {
	return store.Document{
		"websiteName": c.WebsiteName,
		"websiteUrl":  c.WebsiteURL,
		"username":    c.Username,
		"password":    c.Password,
		"imgUrl":      c.ImgURL,
		"createdBy":   c.CreatedBy,
		"createdAt":   c.CreatedAt,
		"status":      string(c.Status),
	}
}

func credentialFromRecord(id string, doc store.Document) CredentialRequest {
	c := CredentialRequest{
		ID:          id,
		WebsiteName: doc.String("websiteName"),
		WebsiteURL:  doc.String("websiteUrl"),
		Username:    doc.String("username"),
		Password:    doc.String("password"),
		ImgURL:      doc.String("imgUrl"),
		CreatedBy:   ownerOf(doc),
		CreatedAt:   doc.String("createdAt"),
	}
	c.Status = CredentialStatus(doc.String("status"))
	if s, err := ParseCredentialStatus(string(c.Status)); err == nil {
		c.Status = s
	}
	return c
}

// ownerOf returns the canonical createdBy of a stored document.
func ownerOf(doc store.Document) string {
	if id, ok := NormalizeID(doc["createdBy"]); ok {
		return id
	}
	return doc.String("createdBy")
}

// toDecimal reads a stored amount or balance. Strings, JSON numbers and
// native numbers are accepted.
func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, false
		}
		return *x, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int64:
		return decimal.NewFromInt(x), true
	default:
		d, err := decimal.NewFromString(fmt.Sprint(x))
		return d, err == nil
	}
}

// ParseAmount parses a request amount. It must be a positive decimal.
func ParseAmount(v interface{}) (decimal.Decimal, error) {
	d, ok := toDecimal(v)
	if !ok {
		if v == nil || v == "" {
			return decimal.Zero, required("amount")
		}
		return decimal.Zero, invalid("amount", "must be a decimal number")
	}
	if !d.IsPositive() {
		return decimal.Zero, invalid("amount", "must be greater than zero")
	}
	return d, nil
}
