package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type ClaimRequest struct {
	Token string `json:"token"`
}

func (req *ClaimRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Token, validation.Required),
	)
}

type SecureClaimRequest struct {
	EventID string `json:"event_id"`
	Blob    string `json:"blob"`
}

func (req *SecureClaimRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.EventID, validation.Required, is.UUID),
		validation.Field(&req.Blob, validation.Required),
	)
}

type Validation struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Hash    string `json:"hash"`
	// Timestamp is the device clock in unix milliseconds. The ledger keeps
	// its own insertion time.
	Timestamp int64 `json:"timestamp"`
}

func (v Validation) Validate() error {
	return validation.ValidateStruct(
		&v,
		validation.Field(&v.EventID, validation.Required),
		validation.Field(&v.UserID, validation.Required),
		validation.Field(&v.Hash, validation.Required, validation.Length(64, 64), is.Hexadecimal),
	)
}

type SyncValidationsRequest struct {
	Validations []Validation `json:"validations"`
}

func (req *SyncValidationsRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Validations, validation.Required, validation.Length(1, 1000)),
	)
}
