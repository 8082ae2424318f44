// Package disclosure issues signed receipts for identity disclosures. A
// receipt proves that a specific dual-approved request was consumed, without
// carrying the disclosed identity itself.
package disclosure

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
)

// DefaultReceiptTTL keeps receipts short-lived. They attest a moment of
// disclosure, not an ongoing entitlement.
const DefaultReceiptTTL = 15 * time.Minute

// Claims are the signed contents of a disclosure receipt.
type Claims struct {
	jwt.RegisteredClaims
	TenantID       string `json:"tenant_id"`
	PseudonymID    string `json:"pseudonym_id"`
	RequesterID    string `json:"requester_id"`
	FirstApprover  string `json:"first_approver"`
	SecondApprover string `json:"second_approver"`
	Reason         string `json:"reason"`
}

// Issuer mints and verifies HMAC-signed receipts.
type Issuer struct {
	key []byte
	ttl time.Duration
}

// NewIssuer constructs an Issuer. A zero ttl falls back to DefaultReceiptTTL.
func NewIssuer(key []byte, ttl time.Duration) (*Issuer, error) {
	if len(key) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "receipt signing key is required")
	}
	if ttl <= 0 {
		ttl = DefaultReceiptTTL
	}
	return &Issuer{key: key, ttl: ttl}, nil
}

// Issue signs a receipt for a consumed reidentification request.
func (i *Issuer) Issue(requestID id.RequestID, tenantID id.TenantID, pseudonymID id.PseudonymID, requester, firstApprover, secondApprover id.UserID, reason id.ReasonCode, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "runadata",
			Subject:   requestID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        requestID.String(),
		},
		TenantID:       tenantID.String(),
		PseudonymID:    pseudonymID.String(),
		RequesterID:    requester.String(),
		FirstApprover:  firstApprover.String(),
		SecondApprover: secondApprover.String(),
		Reason:         reason.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign disclosure receipt")
	}
	return signed, nil
}

// Verify parses a receipt and returns its claims.
// Errors: CodeUnauthorized for bad signatures or expired receipts.
func (i *Issuer) Verify(receipt string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(receipt, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return i.key, nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid disclosure receipt")
	}
	if !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid disclosure receipt")
	}
	return &claims, nil
}
